// Package health reports whether the services behind the bot are reachable.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	statusOK = "ok"

	defaultCheckTimeout = 2 * time.Second
	defaultCacheTTL     = time.Second
)

// Checkable is one component the bot depends on.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs every registered check in parallel, each under its own timeout. The last report
// is reused for a short while so a burst of probes costs one round of pings.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	checks  map[string]Checkable
	last    map[string]string
	healthy bool
	at      time.Time
}

func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		log:     log,
		timeout: defaultCheckTimeout,
		ttl:     defaultCacheTTL,
		now:     time.Now,
		checks:  make(map[string]Checkable),
	}
}

// AddCheck registers a component. Empty names and nil checks are ignored.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	c.at = time.Time{}
}

// Names lists the registered components in order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check maps every component to "ok" or its error text.
func (c *Checker) Check(ctx context.Context) map[string]string {
	report, _ := c.report(ctx)
	return report
}

// Healthy reports whether every component passed.
func (c *Checker) Healthy(ctx context.Context) bool {
	_, ok := c.report(ctx)
	return ok
}

func (c *Checker) report(ctx context.Context) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.at.IsZero() && c.now().Sub(c.at) < c.ttl {
		return copyReport(c.last), c.healthy
	}

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	results := make([]string, len(names))

	var g errgroup.Group
	for i, name := range names {
		check := c.checks[name]
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			if err := check.HealthCheck(checkCtx); err != nil {
				results[i] = err.Error()
				return nil
			}
			results[i] = statusOK
			return nil
		})
	}
	_ = g.Wait()

	report := make(map[string]string, len(names))
	healthy := true
	for i, name := range names {
		report[name] = results[i]
		if results[i] != statusOK {
			healthy = false
			c.log.WarnContext(ctx, "health check failed", slog.String("component", name), slog.String("error", results[i]))
		}
	}

	c.last, c.healthy, c.at = report, healthy, c.now()
	return copyReport(report), healthy
}

func copyReport(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// DBChecker pings the step and locale database.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger is the part of redis.Client the check needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker pings the Redis server behind steps, payloads and update idempotency.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// ErrIdentityUnknown is reported until the bot profile was fetched from the platform.
var ErrIdentityUnknown = errors.New("bot identity is not loaded")

// IdentityChecker fails while the bot user id is unknown.
type IdentityChecker struct {
	userID func() int64
}

func NewIdentityChecker(userID func() int64) *IdentityChecker {
	return &IdentityChecker{userID: userID}
}

func (c *IdentityChecker) HealthCheck(context.Context) error {
	if c.userID == nil || c.userID() == 0 {
		return ErrIdentityUnknown
	}
	return nil
}
