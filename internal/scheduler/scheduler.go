package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	verifyTimeout         = 30 * time.Minute
)

type CredentialVerifier interface {
	VerifyAll(ctx context.Context) error
}

// Scheduler periodically re-verifies stored credentials.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	spec     string
	verifier CredentialVerifier
	log      *slog.Logger
}

func New(ctx context.Context, spec string, verifier CredentialVerifier, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		spec:     spec,
		verifier: verifier,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.verifyCredentials); err != nil {
		return fmt.Errorf("add cron func: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop waits for a running verification to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) verifyCredentials() {
	ctx, cancel := context.WithTimeout(s.ctx, verifyTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()

	if err := s.verifier.VerifyAll(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to verify some credentials",
			"error", err,
			"spec", s.spec,
			"elapsedSeconds", time.Since(start).Seconds())

		return
	}

	s.log.InfoContext(ctx, "Scheduled credential verification is done",
		"spec", s.spec,
		"elapsedSeconds", time.Since(start).Seconds())
}
