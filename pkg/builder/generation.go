package builder

import (
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
)

func (b *Builder) WithGemini(apiKey string) *Builder {
	b.cfg.Generation.APIKey = apiKey
	return b
}

func (b *Builder) WithGenerationModel(model string) *Builder {
	b.cfg.Generation.Model = model
	return b
}

func (b *Builder) WithGenerationTimeout(timeout time.Duration) *Builder {
	b.cfg.Generation.TimeoutMs = int(timeout / time.Millisecond)
	return b
}

// WithUserRateLimit caps generation requests per user per minute. Zero disables the cap.
func (b *Builder) WithUserRateLimit(rpm int) *Builder {
	b.cfg.Generation.RateLimitRpm = rpm
	return b
}

func (b *Builder) WithCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *Builder {
	b.cfg.CircuitBreaker = &models.CircuitBreakerConfig{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		TimeoutMs:        int(timeout / time.Millisecond),
	}
	return b
}
