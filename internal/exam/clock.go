package exam

import "time"

// Clock abstracts wall time so lock expiry and peer pruning are testable
// without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock -.
var SystemClock Clock = systemClock{}
