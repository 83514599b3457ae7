// Package pkg re-exports the configuration types needed to embed the server with the builder.
package pkg

import "github.com/pixora-ai/pixora-api/internal/models"

type (
	ServerConfig         = models.ServerConfig
	DatabaseConfig       = models.DatabaseConfig
	DatabaseType         = models.DatabaseType
	StripeConfig         = models.StripeConfig
	GenerationConfig     = models.GenerationConfig
	CircuitBreakerConfig = models.CircuitBreakerConfig
	KafkaConfig          = models.KafkaConfig
	TelemetryConfig      = models.TelemetryConfig
	RateLimitConfig      = models.RateLimitConfig
	Plan                 = models.Plan
)

const (
	PostgreSQL = models.PostgreSQL
	MySQL      = models.MySQL
	SQLite     = models.SQLite
)
