package metrics

import "time"

// Recorder receives scheduling measurements.
type Recorder interface {
	ObserveRegeneration(d time.Duration, err error)
	LanesPlaced(placer string, n int)
	HeatsCreated(reason string, n int)
	TaskFailed(task string)
}

// Nop discards every measurement.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ObserveRegeneration(time.Duration, error) {}
func (Nop) LanesPlaced(string, int)                  {}
func (Nop) HeatsCreated(string, int)                 {}
func (Nop) TaskFailed(string)                        {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
