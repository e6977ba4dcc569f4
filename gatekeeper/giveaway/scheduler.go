package giveaway

import (
	"context"
	"time"

	"log/slog"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Scheduler drives the resolution sweep on a fixed cadence. The sweep
// itself is idempotent, so an overlapping or restarted schedule is
// harmless.
type Scheduler struct {
	manager *Manager
	cron    *cron.Cron
}

func NewScheduler(manager *Manager) *Scheduler {
	return &Scheduler{
		manager: manager,
		cron:    cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := s.manager.Sweep(ctx); err != nil {
			slog.Error("Giveaway sweep failed",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
