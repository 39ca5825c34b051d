package realtime

import (
	"math/rand"
	"time"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// ReconnectPolicy controls automatic redialing after an unexpected close. A nil
// policy means the client never reconnects on its own.
type ReconnectPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts caps consecutive attempts; zero means unlimited.
	MaxAttempts int
	// Jitter removes up to this fraction of each delay at random (0..1).
	Jitter float64
	// Rand overrides the jitter source; it must return values in [0,1).
	Rand func() float64
}

// DefaultReconnectPolicy doubles from one second up to thirty, with 20% jitter.
func DefaultReconnectPolicy() *ReconnectPolicy {
	return &ReconnectPolicy{
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
		Jitter:    0.2,
	}
}

// Delay returns the wait before attempt (zero based) and false once attempts are
// exhausted.
func (p *ReconnectPolicy) Delay(attempt int) (time.Duration, bool) {
	if p == nil || attempt < 0 {
		return 0, false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}

	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	delay := base
	for i := 0; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		random := rand.Float64
		if p.Rand != nil {
			random = p.Rand
		}
		delay -= time.Duration(float64(delay) * jitter * random())
	}
	return delay, true
}
