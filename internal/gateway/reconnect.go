package gateway

import (
	"context"
	"log/slog"
	"time"
)

// OuterRetrier drives the *outer* recovery loop: when the very first
// Connect to a session fails (not a mid-session drop, which
// Connection.reconnect already handles internally), the caller backs off
// exponentially with jitter rather than the core's flat 1s/2-attempt
// policy. This is kept distinct from Connection.reconnect on purpose: the
// core's policy bounds how fast it retries against Discord once a session
// is live, while this one bounds how fast the application re-attempts
// standing up a session at all.
type OuterRetrier struct {
	logger  *slog.Logger
	backoff backoffPolicy

	attempt    int
	maxAttempt int
	stopChan   chan struct{}
	stopped    bool

	// OnRetry, if set, is called after a failed connect, just before the
	// backoff sleep, with the attempt number about to be slept through and
	// the delay chosen for it.
	OnRetry func(attempt int, delay time.Duration)
}

// NewOuterRetrier creates a retrier that gives up after maxAttempt failed
// connects. maxAttempt <= 0 means retry forever.
func NewOuterRetrier(maxAttempt int, logger *slog.Logger) *OuterRetrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &OuterRetrier{
		logger:     logger.With("component", "reconnector"),
		backoff:    defaultBackoff,
		maxAttempt: maxAttempt,
		stopChan:   make(chan struct{}),
	}
}

// Run calls connect repeatedly, waiting r.backoff.delay(attempt) between
// failures, until connect succeeds, ctx is cancelled, Stop is called, or
// maxAttempt is exhausted. It returns the first successful result.
func (r *OuterRetrier) Run(ctx context.Context, connect func(ctx context.Context) (*Connection, ReadySnapshot, error)) (*Connection, ReadySnapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ReadySnapshot{}, ctx.Err()
		case <-r.stopChan:
			return nil, ReadySnapshot{}, ErrShuttingDown
		default:
		}

		if r.maxAttempt > 0 && r.attempt >= r.maxAttempt {
			r.logger.Error("max connect attempts reached", "attempts", r.attempt)
			return nil, ReadySnapshot{}, newProtocolErr("max connect attempts reached")
		}

		conn, ready, err := connect(ctx)
		if err == nil {
			r.logger.Info("connected", "attempt", r.attempt+1)
			r.attempt = 0
			return conn, ready, nil
		}

		delay := r.backoff.delay(r.attempt)
		r.logger.Warn("connect failed, backing off",
			"attempt", r.attempt+1, "delay", delay.String(), "error", err)
		r.attempt++
		if r.OnRetry != nil {
			r.OnRetry(r.attempt, delay)
		}

		select {
		case <-ctx.Done():
			return nil, ReadySnapshot{}, ctx.Err()
		case <-r.stopChan:
			return nil, ReadySnapshot{}, ErrShuttingDown
		case <-time.After(delay):
		}
	}
}

// Stop halts any in-progress Run call.
func (r *OuterRetrier) Stop() {
	if !r.stopped {
		r.stopped = true
		close(r.stopChan)
	}
}

// ResetAttempts resets the attempt counter.
func (r *OuterRetrier) ResetAttempts() {
	r.attempt = 0
}

// Attempt returns the current attempt count.
func (r *OuterRetrier) Attempt() int {
	return r.attempt
}
