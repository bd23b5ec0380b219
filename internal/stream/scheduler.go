package stream

import "time"

// Timer is the stoppable handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts timer creation so the reconnect and keepalive logic
// can be driven by a fake clock in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// WallClock returns the production scheduler backed by time.AfterFunc.
func WallClock() Scheduler { return wallScheduler{} }
