package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewOuterRetrier(t *testing.T) {
	r := NewOuterRetrier(10, nil)

	if r == nil {
		t.Fatal("NewOuterRetrier returned nil")
	}
	if r.maxAttempt != 10 {
		t.Errorf("expected maxAttempt 10, got %d", r.maxAttempt)
	}
	if r.Attempt() != 0 {
		t.Errorf("expected initial attempt 0, got %d", r.Attempt())
	}
}

func TestOuterRetrierResetAttempts(t *testing.T) {
	r := NewOuterRetrier(10, nil)
	r.attempt = 5
	r.ResetAttempts()

	if r.Attempt() != 0 {
		t.Errorf("expected attempt after reset to be 0, got %d", r.Attempt())
	}
}

func TestOuterRetrierStop(t *testing.T) {
	r := NewOuterRetrier(10, nil)
	r.Stop()

	if !r.stopped {
		t.Error("expected stopped to be true after Stop()")
	}

	// Double stop should not panic.
	r.Stop()
}

func TestOuterRetrierSucceedsFirstTry(t *testing.T) {
	r := NewOuterRetrier(10, nil)
	calls := 0

	conn, ready, err := r.Run(context.Background(), func(ctx context.Context) (*Connection, ReadySnapshot, error) {
		calls++
		return &Connection{}, ReadySnapshot{SessionID: "abc"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn == nil {
		t.Fatal("expected non-nil connection")
	}
	if ready.SessionID != "abc" {
		t.Errorf("expected session id 'abc', got %q", ready.SessionID)
	}
	if calls != 1 {
		t.Errorf("expected exactly one connect call, got %d", calls)
	}
}

func TestOuterRetrierRetriesThenSucceeds(t *testing.T) {
	r := NewOuterRetrier(10, nil)
	calls := 0

	_, _, err := r.Run(context.Background(), func(ctx context.Context) (*Connection, ReadySnapshot, error) {
		calls++
		if calls < 3 {
			return nil, ReadySnapshot{}, errors.New("dial failed")
		}
		return &Connection{}, ReadySnapshot{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 connect attempts, got %d", calls)
	}
	if r.Attempt() != 0 {
		t.Errorf("expected attempt counter reset after success, got %d", r.Attempt())
	}
}

func TestOuterRetrierContextCancel(t *testing.T) {
	r := NewOuterRetrier(0, nil) // unlimited attempts, bounded only by ctx

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_, _, _ = r.Run(ctx, func(ctx context.Context) (*Connection, ReadySnapshot, error) {
			return nil, ReadySnapshot{}, errors.New("always fails")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Run did not return when context was cancelled")
	}
}

func TestOuterRetrierStopWhileRunning(t *testing.T) {
	r := NewOuterRetrier(0, nil)

	done := make(chan struct{})
	go func() {
		_, _, _ = r.Run(context.Background(), func(ctx context.Context) (*Connection, ReadySnapshot, error) {
			return nil, ReadySnapshot{}, errors.New("always fails")
		})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Run did not return when stopped")
	}
}

func TestOuterRetrierMaxAttemptsExhausted(t *testing.T) {
	r := NewOuterRetrier(1, nil)
	r.attempt = 1 // simulate having already burned the only allowed attempt

	calls := 0
	_, _, err := r.Run(context.Background(), func(ctx context.Context) (*Connection, ReadySnapshot, error) {
		calls++
		return nil, ReadySnapshot{}, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after max attempts exhausted")
	}
	if calls != 0 {
		t.Errorf("expected connect not to be called once attempts are exhausted, got %d calls", calls)
	}
}
