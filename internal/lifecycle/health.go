package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrNotReady is returned by Readiness before startup completed or after shutdown began.
var ErrNotReady = errors.New("bot is not ready")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Dependencies reports whether the bot's backing services are reachable.
type Dependencies interface {
	Healthy(ctx context.Context) bool
}

// Probes answers liveness unconditionally and readiness from a flag plus the dependency checks.
type Probes struct {
	log   *slog.Logger
	deps  Dependencies
	ready atomic.Bool
}

var _ HealthChecker = (*Probes)(nil)

func NewProbes(deps Dependencies, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, deps: deps}
}

// SetReady flips readiness. The transport sets it once updates are being received.
func (p *Probes) SetReady(ready bool) {
	p.ready.Store(ready)
	p.log.Info("readiness changed", slog.Bool("ready", ready))
}

func (p *Probes) Liveness(ctx context.Context) error {
	p.log.DebugContext(ctx, "liveness probe called")
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if !p.ready.Load() {
		return ErrNotReady
	}
	if p.deps != nil && !p.deps.Healthy(ctx) {
		return ErrNotReady
	}
	return nil
}
