// Package scheduler runs the reconciliation batch and the audit outbox
// redelivery on a fixed interval while the server is up.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/jasonlvhit/gocron"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/reconcile"
)

// Runner is the reconciliation batch over all tenants.
type Runner interface {
	RunAll(ctx context.Context) (map[string]reconcile.RunResult, error)
}

// Flusher redelivers parked audit records.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Scheduler triggers Runner and Flusher every few minutes. A tick that
// finds the previous one still running is skipped.
type Scheduler struct {
	runner  Runner
	flusher Flusher
	minutes uint64
	log     logrus.FieldLogger

	mu      sync.Mutex
	running bool
}

// New creates a scheduler firing every minutes minutes. flusher may be nil.
func New(r Runner, f Flusher, minutes int, log logrus.FieldLogger) *Scheduler {
	if minutes < 1 {
		minutes = 1
	}
	return &Scheduler{runner: r, flusher: f, minutes: uint64(minutes), log: log}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	cron := gocron.NewScheduler()
	cron.Every(s.minutes).Minutes().Do(s.Tick, ctx)
	stop := cron.Start()
	s.log.WithField("every_minutes", s.minutes).Info("reconciliation scheduler started")

	<-ctx.Done()
	close(stop)
	cron.Clear()
	s.log.Info("reconciliation scheduler stopped")
}

// Tick runs one batch. It reports false when skipped because the previous
// batch is still running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous reconciliation batch still running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	results, err := s.runner.RunAll(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return true
	case err != nil:
		s.log.WithError(err).Error("reconciliation batch failed")
	default:
		var confirmed, pending int
		for _, r := range results {
			confirmed += r.Counts[reconcile.OutcomeConfirmed]
			pending += r.Counts[reconcile.OutcomePending] + r.Counts[reconcile.OutcomeAmbiguous]
		}
		s.log.WithFields(logrus.Fields{
			"tenants":   len(results),
			"confirmed": confirmed,
			"pending":   pending,
		}).Info("reconciliation batch finished")
	}

	if s.flusher != nil {
		n, err := s.flusher.Flush(ctx)
		if err != nil {
			s.log.WithError(err).Warn("audit outbox flush failed")
		} else if n > 0 {
			s.log.WithField("delivered", n).Info("audit outbox flushed")
		}
	}
	return true
}
