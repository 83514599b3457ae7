package circuitbreaker

import (
	"context"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// LocalBreaker keeps breaker state in process memory; used when no Redis is configured.
type LocalBreaker struct {
	mu        sync.Mutex
	name      string
	config    Config
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

func NewLocalBreaker(name string, config Config) *LocalBreaker {
	return &LocalBreaker{name: name, config: config, now: time.Now}
}

func (cb *LocalBreaker) Allow(context.Context) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != Open {
		return true
	}
	if cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.state = HalfOpen
		cb.successes = 0
		fiberlog.Infof("CircuitBreaker: %s moved to HalfOpen", cb.name)
		return true
	}
	return false
}

func (cb *LocalBreaker) RecordSuccess(context.Context) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != HalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.config.SuccessThreshold {
		cb.state = Closed
		cb.successes = 0
		fiberlog.Infof("CircuitBreaker: %s transitioned to Closed", cb.name)
	}
}

func (cb *LocalBreaker) RecordFailure(context.Context) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == HalfOpen || (cb.state == Closed && cb.failures >= cb.config.FailureThreshold) {
		cb.state = Open
		cb.openedAt = cb.now()
		cb.successes = 0
		fiberlog.Warnf("CircuitBreaker: %s transitioned to Open", cb.name)
	}
}

func (cb *LocalBreaker) State(context.Context) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
