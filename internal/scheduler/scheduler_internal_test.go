package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type countingVerifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (v *countingVerifier) VerifyAll(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++

	return v.err
}

func (v *countingVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.calls
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), "every day", &countingVerifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}

func TestSchedulerVerifyCredentials(t *testing.T) {
	v := &countingVerifier{err: errors.New("boom")}
	s := New(context.Background(), "0 4 * * *", v, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.verifyCredentials()

	if got := v.callCount(); got != 1 {
		t.Fatalf("expected one verification, got %d", got)
	}
}

func TestSchedulerSkipsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := &countingVerifier{}
	s := New(ctx, "0 4 * * *", v, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.verifyCredentials()

	if got := v.callCount(); got != 0 {
		t.Fatalf("expected no verification, got %d", got)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := New(context.Background(), "@every 1h", &countingVerifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Stop()
}
