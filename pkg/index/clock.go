package index

import "time"

// Clock abstracts timer scheduling so the synchronizer's debounce window can
// be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the handle returned by Clock.AfterFunc
type Timer interface {
	Stop() bool
}

type realClock struct{}

// RealClock returns a Clock backed by the time package
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
