package gateway

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// backoffPolicy computes exponential-with-jitter delays for the outer
// connect-retry loop. It's a value carried by OuterRetrier rather than a
// set of package globals, so a retrier can be built with a different
// base/cap without touching shared state.
type backoffPolicy struct {
	base         time.Duration
	max          time.Duration
	jitterFactor float64
}

// defaultBackoff is the bound OuterRetrier falls back to when none is
// supplied: double from 1s, cap at 60s, add up to 50% jitter so a fleet
// of containers restarting at once doesn't all hit Discord's IDENTIFY
// rate limit in the same instant.
var defaultBackoff = backoffPolicy{
	base:         1 * time.Second,
	max:          60 * time.Second,
	jitterFactor: 0.5,
}

// delay computes the backoff for a 0-indexed attempt: base*2^attempt,
// capped at max, plus 0-jitterFactor*delay of random jitter.
func (p backoffPolicy) delay(attempt int) time.Duration {
	// 2^6 already clears any max this client configures, so clamp the
	// shift rather than let a long-running session overflow it.
	if attempt > 6 {
		attempt = 6
	}

	delay := p.base * time.Duration(1<<uint(attempt))
	if delay > p.max {
		delay = p.max
	}

	return delay + p.jitter(delay)
}

// jitter returns a random duration in [0, jitterFactor*delay), read from
// crypto/rand so retry timing can't be predicted by an observer on the
// other end of the connection.
func (p backoffPolicy) jitter(delay time.Duration) time.Duration {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}

	randUint := binary.BigEndian.Uint64(buf[:])
	randFloat := float64(randUint) / float64(^uint64(0))
	jitterNanos := randFloat * p.jitterFactor * float64(delay.Nanoseconds())
	return time.Duration(jitterNanos)
}
