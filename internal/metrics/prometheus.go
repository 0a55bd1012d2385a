package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder with collectors registered on first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	regenerations        *prometheus.CounterVec
	regenerationDuration prometheus.Histogram
	lanesPlaced          *prometheus.CounterVec
	heatsCreated         *prometheus.CounterVec
	taskFailures         *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus uses prometheus.DefaultRegisterer when reg is nil and the "heats"
// namespace when namespace is empty.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "heats"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.regenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "runs_total",
			Help:      "Schedule regenerations by result (success, failure).",
		}, []string{"result"})
		p.regenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "regeneration",
			Name:      "duration_seconds",
			Help:      "Duration of schedule regenerations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		})
		p.lanesPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "placement",
			Name:      "lanes_total",
			Help:      "Lanes created by placer (bulk, incremental, selected).",
		}, []string{"placer"})
		p.heatsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "placement",
			Name:      "heats_created_total",
			Help:      "Heats created by reason (regeneration, overflow, registration).",
		}, []string{"reason"})
		p.taskFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "tasks",
			Name:      "failures_total",
			Help:      "Failed post-commit tasks by task name.",
		}, []string{"task"})

		p.reg.MustRegister(p.regenerations)
		p.reg.MustRegister(p.regenerationDuration)
		p.reg.MustRegister(p.lanesPlaced)
		p.reg.MustRegister(p.heatsCreated)
		p.reg.MustRegister(p.taskFailures)
	})
}

func (p *Prometheus) ObserveRegeneration(d time.Duration, err error) {
	p.ensureRegistered()
	result := "success"
	if err != nil {
		result = "failure"
	}
	p.regenerations.WithLabelValues(result).Inc()
	p.regenerationDuration.Observe(d.Seconds())
}

func (p *Prometheus) LanesPlaced(placer string, n int) {
	p.ensureRegistered()
	p.lanesPlaced.WithLabelValues(placer).Add(float64(n))
}

func (p *Prometheus) HeatsCreated(reason string, n int) {
	p.ensureRegistered()
	p.heatsCreated.WithLabelValues(reason).Add(float64(n))
}

func (p *Prometheus) TaskFailed(task string) {
	p.ensureRegistered()
	p.taskFailures.WithLabelValues(task).Inc()
}
