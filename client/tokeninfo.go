package client

import (
	"fmt"
	"time"

	"github.com/taalim-io/gatekeeper/core"
)

// TokenInfo is the client-side picture of credential freshness: the two
// lifetime descriptors from the login or refresh response plus the time the
// response was received.
//
// Remaining time is an estimate derived at receipt time, not the true
// server-issued expiry instant; clock drift and transport latency introduce
// bounded error. It is not a security boundary.
type TokenInfo struct {
	AccessTokenExpiresIn  string    `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn string    `json:"refreshTokenExpiresIn"`
	ReceivedAt            time.Time `json:"receivedAt"`
}

// AccessRemaining reports the estimated time left on the access credential,
// clamped at zero.
func (ti TokenInfo) AccessRemaining(now time.Time) (time.Duration, error) {
	return ti.remaining(ti.AccessTokenExpiresIn, now)
}

// RefreshRemaining reports the estimated time left on the refresh
// credential, clamped at zero.
func (ti TokenInfo) RefreshRemaining(now time.Time) (time.Duration, error) {
	return ti.remaining(ti.RefreshTokenExpiresIn, now)
}

func (ti TokenInfo) remaining(descriptor string, now time.Time) (time.Duration, error) {
	ttl, err := core.ParseExpiry(descriptor)
	if err != nil {
		return 0, err
	}

	remaining := ti.ReceivedAt.Add(ttl).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Thresholds configures when credentials count as expiring soon. A single
// access threshold drives both the warning banner and the renewal hint.
type Thresholds struct {
	AccessWarn  time.Duration
	RefreshWarn time.Duration
}

// DefaultThresholds returns the default expiry thresholds: the access
// warning fires in the last five minutes, the refresh warning in the last
// hour.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AccessWarn:  5 * time.Minute,
		RefreshWarn: time.Hour,
	}
}

// AccessExpiringSoon reports whether the access credential is inside the
// warning window. A malformed descriptor counts as expiring.
func (ti TokenInfo) AccessExpiringSoon(now time.Time, th Thresholds) bool {
	remaining, err := ti.AccessRemaining(now)
	if err != nil {
		return true
	}
	return remaining < th.AccessWarn
}

// RefreshExpiringSoon reports whether the refresh credential is inside the
// warning window.
func (ti TokenInfo) RefreshExpiringSoon(now time.Time, th Thresholds) bool {
	remaining, err := ti.RefreshRemaining(now)
	if err != nil {
		return true
	}
	return remaining < th.RefreshWarn
}

// FormatRemaining renders a remaining duration for the warning banner,
// "m:ss" under an hour and "h:mm:ss" above.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
