package oracle

import "time"

// Clock abstracts time so the commit gating can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the default wall clock.
var SystemClock Clock = realClock{}
