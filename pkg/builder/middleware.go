package builder

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func (b *Builder) WithRateLimit(max int, expiration time.Duration, keyFunc ...func(*fiber.Ctx) string) *Builder {
	b.cfg.Middleware.RateLimit.Max = max
	b.cfg.Middleware.RateLimit.ExpirationMs = int(expiration / time.Millisecond)
	if len(keyFunc) > 0 {
		b.cfg.Middleware.RateLimit.KeyFunc = keyFunc[0]
	}
	return b
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.cfg.Middleware.RequestTimeoutMs = int(timeout / time.Millisecond)
	return b
}

func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}
