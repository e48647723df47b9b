package core

import (
	"fmt"
	"time"
)

// Expiry descriptors travel on the wire as "<integer><unit>", e.g. "15m" or
// "7d". time.ParseDuration cannot be used here because the format includes
// day and week units and excludes fractions and composites like "1h30m".

var expiryUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseExpiry parses an expiry descriptor. An unknown unit is an error
// rather than a silent fallback.
func ParseExpiry(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
	}

	unit, ok := expiryUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidExpiry, s)
	}

	var n int64
	for i := 0; i < len(s)-1; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, s)
		}
		n = n*10 + int64(c-'0')
	}

	return time.Duration(n) * unit, nil
}

// FormatExpiry renders a duration as a descriptor using the largest unit
// that divides it exactly.
func FormatExpiry(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	for _, u := range []struct {
		unit   time.Duration
		suffix string
	}{
		{7 * 24 * time.Hour, "w"},
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
	} {
		if d >= u.unit && d%u.unit == 0 {
			return fmt.Sprintf("%d%s", d/u.unit, u.suffix)
		}
	}
	return fmt.Sprintf("%ds", d/time.Second)
}
