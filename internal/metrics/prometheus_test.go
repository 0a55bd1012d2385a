package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.ObserveRegeneration(10*time.Millisecond, nil)
	p.ObserveRegeneration(time.Millisecond, errors.New("boom"))
	p.LanesPlaced("bulk", 13)
	p.HeatsCreated("regeneration", 3)
	p.TaskFailed("cascade")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.regenerations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.regenerations.WithLabelValues("failure")))
	assert.Equal(t, 13.0, testutil.ToFloat64(p.lanesPlaced.WithLabelValues("bulk")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.heatsCreated.WithLabelValues("regeneration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.taskFailures.WithLabelValues("cascade")))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	p := NewPrometheus(prometheus.NewRegistry(), "")
	assert.Equal(t, p, OrNop(p))
}
