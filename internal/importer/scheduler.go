package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler reconciles the orchestrator with the store on a cron schedule,
// so uploads made by another instance show up without a restart.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

func NewScheduler(o *Orchestrator, spec string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  logger,
		timeout: timeout,
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		err := o.Load(ctx)
		switch {
		case err == nil:
			s.logger.Info("scheduled_reconcile", "orders", len(o.Snapshot().Orders))
		case errors.Is(err, ErrImportInFlight), errors.Is(err, ErrSuperseded):
			s.logger.Info("scheduled_reconcile_skipped", "reason", err.Error())
		default:
			s.logger.Warn("scheduled_reconcile_failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running reconcile to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
