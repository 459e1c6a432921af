package eventbus

import "time"

// Clock supplies the current time for queue TTL bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
