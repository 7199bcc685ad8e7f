package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/doorman-labs/doorman/internal/doorman/store"
)

// Sweeper periodically retires stale pending requests.  Purely janitorial:
// an expired request never revokes an already-issued capability.
type Sweeper struct {
	requests store.RequestStore
	cron     *cron.Cron
	interval time.Duration
	logger   *log.Logger
}

func NewSweeper(rs store.RequestStore, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		requests: rs,
		cron:     cron.New(),
		interval: interval,
		logger:   logger,
	}
}

// Start runs an immediate sweep to clear any backlog, then repeats on the
// configured interval until Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.Sweep(ctx)

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.logger.Printf("sweeper started (interval=%s)", s.interval)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Printf("sweeper stopped")
}

// Sweep marks every overdue pending request as expired.
func (s *Sweeper) Sweep(ctx context.Context) {
	swept, err := s.requests.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Printf("sweep error: %v", err)
		return
	}
	if swept > 0 {
		s.logger.Printf("sweep: expired %d stale knock requests", swept)
	}
}
