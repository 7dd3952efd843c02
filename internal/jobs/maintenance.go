package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/stepbot/internal/dedup"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

const (
	JobDedupPrune       = "dedup_prune"
	JobIdempotencyPrune = "idempotency_prune"
	JobPendingSteps     = "pending_steps_gauge"
)

// Pruner drops expired in-memory entries.
type Pruner interface {
	Prune() int
}

// StepLister lists pending conversation steps.
type StepLister interface {
	All(ctx context.Context) (map[string]platform.Update, error)
}

// MaintenanceDeps are the stores kept tidy by the periodic jobs. Nil members are skipped.
type MaintenanceDeps struct {
	Dedup       *dedup.Detector
	DedupMaxAge time.Duration
	Guard       Pruner
	Steps       StepLister
}

type maintenance struct {
	deps MaintenanceDeps
	log  *slog.Logger
	now  func() time.Time
}

// RegisterMaintenance schedules the housekeeping jobs at interval.
func RegisterMaintenance(s *Scheduler, deps MaintenanceDeps, interval time.Duration, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if deps.DedupMaxAge <= 0 {
		deps.DedupMaxAge = time.Minute
	}
	m := &maintenance{deps: deps, log: log, now: time.Now}

	jobs := []struct {
		name string
		on   bool
		fn   func(context.Context)
	}{
		{JobDedupPrune, deps.Dedup != nil, m.pruneDedup},
		{JobIdempotencyPrune, deps.Guard != nil, m.pruneGuard},
		{JobPendingSteps, deps.Steps != nil, m.countSteps},
	}
	for _, j := range jobs {
		if !j.on {
			continue
		}
		if err := s.Every(j.name, interval, j.fn); err != nil {
			return fmt.Errorf("register maintenance: %w", err)
		}
	}
	return nil
}

func (m *maintenance) pruneDedup(ctx context.Context) {
	if n := m.deps.Dedup.Prune(m.now(), m.deps.DedupMaxAge); n > 0 {
		m.log.DebugContext(ctx, "double tap windows pruned", slog.Int("removed", n), slog.Int("left", m.deps.Dedup.Len()))
	}
}

func (m *maintenance) pruneGuard(ctx context.Context) {
	if n := m.deps.Guard.Prune(); n > 0 {
		m.log.DebugContext(ctx, "idempotency keys pruned", slog.Int("removed", n))
	}
}

func (m *maintenance) countSteps(ctx context.Context) {
	steps, err := m.deps.Steps.All(ctx)
	if err != nil {
		m.log.WarnContext(ctx, "count pending steps failed", slog.Any("error", err))
		return
	}
	metrics.SetPendingSteps(len(steps))
}
