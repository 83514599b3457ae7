package models

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// MiddlewareConfig holds the global request limits applied before routing.
type MiddlewareConfig struct {
	RateLimit        RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	RequestTimeoutMs int             `json:"request_timeout_ms,omitzero" yaml:"request_timeout_ms"`
}

type RateLimitConfig struct {
	Max          int                     `json:"max,omitzero" yaml:"max"`
	ExpirationMs int                     `json:"expiration_ms,omitzero" yaml:"expiration_ms"`
	KeyFunc      func(*fiber.Ctx) string `json:"-" yaml:"-"`
}

func (c RateLimitConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationMs) * time.Millisecond
}

func (c MiddlewareConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}
