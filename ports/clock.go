package ports

import "time"

// Clock abstracts wall-clock time so expiry logic can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
