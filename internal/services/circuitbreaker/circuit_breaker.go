package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a trial request is let through.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// ConfigFrom fills unset values of cfg with the defaults.
func ConfigFrom(cfg *models.CircuitBreakerConfig) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.SuccessThreshold > 0 {
		out.SuccessThreshold = cfg.SuccessThreshold
	}
	if cfg.TimeoutMs > 0 {
		out.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return out
}

// Breaker guards calls to an unreliable upstream. Allow may move an open circuit to
// half-open once the timeout has passed.
type Breaker interface {
	Allow(ctx context.Context) bool
	RecordSuccess(ctx context.Context)
	RecordFailure(ctx context.Context)
	State(ctx context.Context) State
}
