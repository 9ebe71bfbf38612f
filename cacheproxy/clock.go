package cacheproxy

import "time"

// clock is an interface over time.Since, allowing freshness computations to
// be tested without real sleeps.
type clock interface {
	now() time.Time
	since(t time.Time) time.Duration
}

type realClock struct{}

func (realClock) now() time.Time                  { return time.Now() }
func (realClock) since(t time.Time) time.Duration { return time.Since(t) }

var defaultClock clock = realClock{}
