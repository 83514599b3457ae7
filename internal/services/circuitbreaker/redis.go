package circuitbreaker

import (
	"context"
	"errors"
	"strconv"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "circuit_breaker:"
	redisOpTimeout = time.Second
)

// The breaker lives in one hash: state, failures, successes, opened_at (unix millis).
var (
	// ARGV[1]: now, ARGV[2]: open timeout in millis
	// returns 0 rejected, 1 allowed, 2 allowed as half-open trial
	allowScript = redis.NewScript(`
local state = tonumber(redis.call('HGET', KEYS[1], 'state') or '0')
if state ~= 1 then
	return 1
end
local opened = tonumber(redis.call('HGET', KEYS[1], 'opened_at') or '0')
if tonumber(ARGV[1]) - opened >= tonumber(ARGV[2]) then
	redis.call('HSET', KEYS[1], 'state', 2, 'successes', 0)
	return 2
end
return 0
`)

	// ARGV[1]: success threshold; returns 1 when the circuit closed
	successScript = redis.NewScript(`
local state = tonumber(redis.call('HGET', KEYS[1], 'state') or '0')
redis.call('HSET', KEYS[1], 'failures', 0)
if state == 2 then
	local n = redis.call('HINCRBY', KEYS[1], 'successes', 1)
	if n >= tonumber(ARGV[1]) then
		redis.call('HSET', KEYS[1], 'state', 0, 'successes', 0)
		return 1
	end
end
return 0
`)

	// ARGV[1]: failure threshold, ARGV[2]: now; returns 1 when the circuit opened
	failureScript = redis.NewScript(`
local state = tonumber(redis.call('HGET', KEYS[1], 'state') or '0')
local n = redis.call('HINCRBY', KEYS[1], 'failures', 1)
if state == 2 or (state == 0 and n >= tonumber(ARGV[1])) then
	redis.call('HSET', KEYS[1], 'state', 1, 'opened_at', ARGV[2], 'successes', 0)
	return 1
end
return 0
`)
)

// RedisBreaker shares breaker state across instances through Redis. Redis errors fail
// open so an outage of the breaker store never blocks generation.
type RedisBreaker struct {
	client redis.UniversalClient
	name   string
	key    string
	config Config
	now    func() time.Time
}

func NewRedisBreaker(client redis.UniversalClient, name string, config Config) *RedisBreaker {
	return &RedisBreaker{
		client: client,
		name:   name,
		key:    keyPrefix + name,
		config: config,
		now:    time.Now,
	}
}

func (cb *RedisBreaker) Allow(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	result, err := allowScript.Run(ctx, cb.client, []string{cb.key},
		cb.now().UnixMilli(), cb.config.Timeout.Milliseconds()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failed to read state, allowing execution: %v", cb.name, err)
		return true
	}

	if result == 2 {
		fiberlog.Infof("CircuitBreaker: %s moved to HalfOpen", cb.name)
	}
	return result != 0
}

func (cb *RedisBreaker) RecordSuccess(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	closed, err := successScript.Run(ctx, cb.client, []string{cb.key}, cb.config.SuccessThreshold).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failed to record success: %v", cb.name, err)
		return
	}
	if closed == 1 {
		fiberlog.Infof("CircuitBreaker: %s transitioned to Closed", cb.name)
	}
}

func (cb *RedisBreaker) RecordFailure(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	opened, err := failureScript.Run(ctx, cb.client, []string{cb.key},
		cb.config.FailureThreshold, cb.now().UnixMilli()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failed to record failure: %v", cb.name, err)
		return
	}
	if opened == 1 {
		fiberlog.Warnf("CircuitBreaker: %s transitioned to Open", cb.name)
	}
}

func (cb *RedisBreaker) State(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := cb.client.HGet(ctx, cb.key, "state").Result()
	if errors.Is(err, redis.Nil) {
		return Closed
	}
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: %s failed to get state, returning Closed: %v", cb.name, err)
		return Closed
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return Closed
	}
	return State(n)
}

// Reset closes the circuit and clears its counters.
func (cb *RedisBreaker) Reset(ctx context.Context) error {
	return cb.client.Del(ctx, cb.key).Err()
}
