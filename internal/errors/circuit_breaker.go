package errors

import (
	"errors"
	"sync"
	"time"
)

// Breaker defaults used for the admin alert channel.
const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeLimit rejects calls while the half-open probes are still running.
	ErrProbeLimit = errors.New("circuit breaker is probing")
)

// BreakerConfig tunes when the breaker opens and how it recovers.
type BreakerConfig struct {
	// ErrorThreshold is the failure ratio that opens the breaker once MinRequests were counted.
	ErrorThreshold float64
	MinRequests    int
	// Timeout is how long the breaker stays open before letting probes through.
	Timeout time.Duration
	// HalfOpenMaxRequests successful probes close the breaker again.
	HalfOpenMaxRequests int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorThreshold:      ErrorThreshold,
		MinRequests:         MinRequests,
		Timeout:             TimeoutDuration,
		HalfOpenMaxRequests: HalfOpenMaxRequests,
	}
}

// CircuitBreaker stops calling a failing platform until Timeout has passed.
// Only failures of the platform itself count: a NotEligible target (a user who blocked the bot,
// a deleted chat) says nothing about the platform and is neither a failure nor a success.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	total    int
	probes   int
	openedAt time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(DefaultBreakerConfig())
}

func NewCircuitBreakerWithConfig(cfg BreakerConfig) *CircuitBreaker {
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Call runs fn unless the breaker is open, and records its result.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.failures, cb.total, cb.probes = 0, 0, 0
		fallthrough
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			return ErrProbeLimit
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	outcome := Classify(err)
	if outcome == NotEligible {
		if cb.state == StateHalfOpen {
			cb.probes--
		}
		return
	}

	failed := outcome != OK
	switch cb.state {
	case StateHalfOpen:
		if failed {
			cb.open()
			return
		}
		cb.total++
		if cb.total >= cb.cfg.HalfOpenMaxRequests {
			cb.state = StateClosed
			cb.failures, cb.total, cb.probes = 0, 0, 0
		}
	case StateClosed:
		cb.total++
		if failed {
			cb.failures++
		}
		if cb.total >= cb.cfg.MinRequests && float64(cb.failures)/float64(cb.total) >= cb.cfg.ErrorThreshold {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures, cb.total, cb.probes = 0, 0, 0
}
