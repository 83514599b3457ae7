package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pixora-ai/pixora-api/internal/config"
	"github.com/pixora-ai/pixora-api/internal/services/database"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/ratelimit"
	"github.com/pixora-ai/pixora-api/internal/services/scheduler"
	"github.com/pixora-ai/pixora-api/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

// Server owns the fiber app and every client the handlers depend on.
type Server struct {
	config      *config.Config
	builder     *builder.Builder
	app         *fiber.App
	redis       *redis.Client
	db          *database.DB
	publisher   events.Publisher
	limiter     *ratelimit.Limiter
	expiry      *scheduler.OrderExpiryScheduler
	stopTracing func(context.Context) error
}

// New creates a Server for cfg. cfg must not be nil.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create config")
	}
	return &Server{config: cfg}
}

// NewWithBuilder creates a Server that also installs the builder's custom middlewares.
func NewWithBuilder(b *builder.Builder) *Server {
	return &Server{
		config:  b.Build(),
		builder: b,
	}
}

// App returns the fiber app once Setup has run.
func (s *Server) App() *fiber.App {
	return s.app
}

// Setup connects infrastructure, runs migrations, and mounts middleware and routes
// without starting the listener. Call Close afterwards even when Setup fails.
func (s *Server) Setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	if err := s.initializeInfrastructure(ctx); err != nil {
		return err
	}
	s.limiter = ratelimit.NewLimiter()

	s.app = createFiberApp(s.config)
	setupMiddleware(s.app, s.config, s.builder)

	handlers := s.buildHandlers()
	registerRoutes(s.app, s.config, handlers, s.newAuthMiddleware())

	return nil
}

// Run starts the server and blocks until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defer s.Close()
	if err := s.Setup(ctx); err != nil {
		return err
	}

	listenAddr := ":" + s.config.Server.Port

	fmt.Printf("Pixora API starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	go s.expiry.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

// Close releases every client opened by Setup. It is safe to call more than once.
func (s *Server) Close() {
	if s.expiry != nil {
		s.expiry.Stop()
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			fiberlog.Errorf("Failed to close event publisher: %v", err)
		}
		s.publisher = nil
	}
	if s.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.stopTracing(ctx); err != nil {
			fiberlog.Errorf("Failed to flush traces: %v", err)
		}
		cancel()
		s.stopTracing = nil
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", err)
		}
		s.redis = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
		s.db = nil
	}
}
