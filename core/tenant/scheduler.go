package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/askante/core"
)

// Scheduler runs the invoice generation at a fixed interval until its context is done.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   core.Logger
	now      func() time.Time

	// OnRun, when set, is called after every run (metrics).
	OnRun func(created int, err error)
}

func NewScheduler(svc *Service, interval time.Duration, logger core.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{svc: svc, interval: interval, logger: logger, now: time.Now}
}

// Run blocks: it generates once right away, then on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	created, err := s.svc.GenerateInvoices(ctx, s.now().UTC())
	if err != nil && ctx.Err() == nil {
		s.logger.Error(fmt.Sprintf("generating invoices: %v", err), err)
	} else if created > 0 {
		s.logger.Info(fmt.Sprintf("generated %d invoice(s)", created))
	}
	if s.OnRun != nil {
		s.OnRun(created, err)
	}
}
