package server

import (
	"context"
	"fmt"
	"time"

	"github.com/pixora-ai/pixora-api/internal/services/circuitbreaker"
	"github.com/pixora-ai/pixora-api/internal/services/database"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/observability"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const generationBreakerName = "gemini_image_generation"

// initializeInfrastructure opens clients in dependency order. Whatever was opened
// before a failure stays on the Server for Close to release.
func (s *Server) initializeInfrastructure(ctx context.Context) error {
	stopTracing, err := observability.SetupTracing(ctx, s.config.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	s.stopTracing = stopTracing

	redisClient, err := createRedisClient(ctx, s.redisURL())
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	s.redis = redisClient

	db, err := database.New(*s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	s.db = db
	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	publisher, err := events.NewPublisher(s.config.Events)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	s.publisher = publisher

	return nil
}

func (s *Server) redisURL() string {
	if s.config.Redis == nil {
		return ""
	}
	return s.config.Redis.URL
}

// newBreaker shares breaker state across replicas through Redis when it is configured.
func (s *Server) newBreaker() circuitbreaker.Breaker {
	cfg := circuitbreaker.ConfigFrom(s.config.CircuitBreaker)
	if s.redis != nil {
		return circuitbreaker.NewRedisBreaker(s.redis, generationBreakerName, cfg)
	}
	fiberlog.Info("Redis not configured - using in-process circuit breaker")
	return circuitbreaker.NewLocalBreaker(generationBreakerName, cfg)
}

func createRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		fiberlog.Info("Redis not configured - shared circuit breaker disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	fiberlog.Debugf("Redis client configuration: PoolSize=%d, MinIdle=%d, MaxRetries=%d",
		opt.PoolSize, opt.MinIdleConns, opt.MaxRetries)

	return pingWithRetry(ctx, redis.NewClient(opt))
}

func pingWithRetry(ctx context.Context, client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			}
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}
