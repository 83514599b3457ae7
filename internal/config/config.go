package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

// Config represents the complete application configuration
type Config struct {
	Server         models.ServerConfig          `yaml:"server"`
	Middleware     models.MiddlewareConfig      `yaml:"middleware"`
	Database       *models.DatabaseConfig       `yaml:"database,omitempty"`
	Redis          *models.RedisConfig          `yaml:"redis,omitempty"`
	Auth           *models.AuthConfig           `yaml:"auth,omitempty"`
	Billing        *models.StripeConfig         `yaml:"billing,omitempty"`
	Generation     models.GenerationConfig      `yaml:"generation"`
	CircuitBreaker *models.CircuitBreakerConfig `yaml:"circuit_breaker,omitempty"`
	Credits        models.CreditsConfig         `yaml:"credits"`
	Orders         models.OrdersConfig          `yaml:"orders"`
	Events         models.EventsConfig          `yaml:"events"`
	Telemetry      *models.TelemetryConfig      `yaml:"telemetry,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration after substituting environment variables and applies defaults.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fiberlog.Infof("Loaded environment variables from %s", envFile)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// ApplyDefaults fills zero values with the production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Middleware.RateLimit.Max == 0 {
		c.Middleware.RateLimit.Max = 1000
	}
	if c.Middleware.RateLimit.ExpirationMs == 0 {
		c.Middleware.RateLimit.ExpirationMs = int(time.Minute / time.Millisecond)
	}
	if c.Middleware.RequestTimeoutMs == 0 {
		c.Middleware.RequestTimeoutMs = int(90 * time.Second / time.Millisecond)
	}

	if c.Generation.Model == "" {
		c.Generation.Model = models.DefaultGenerationModel
	}
	if c.Generation.TimeoutMs <= 0 {
		c.Generation.TimeoutMs = models.DefaultGenerationTimeoutMs
	}
	if c.Generation.MaxPromptLength <= 0 {
		c.Generation.MaxPromptLength = models.DefaultMaxPromptLength
	}
	if c.Generation.MaxImageBytes <= 0 {
		c.Generation.MaxImageBytes = models.DefaultMaxImageBytes
	}

	if c.Credits.WelcomeBonus <= 0 {
		c.Credits.WelcomeBonus = models.DefaultWelcomeBonusCredits
	}

	if c.Orders.ExpireAfterHours <= 0 {
		c.Orders.ExpireAfterHours = models.DefaultOrderExpireAfterHours
	}
	if c.Orders.SweepIntervalMinutes <= 0 {
		c.Orders.SweepIntervalMinutes = models.DefaultOrderSweepIntervalMinutes
	}

	if c.Billing != nil && c.Billing.Currency == "" {
		c.Billing.Currency = models.DefaultCurrency
	}
}

// GenerationTimeout returns the hard deadline for one upstream generation call
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutMs) * time.Millisecond
}

// StripeConfig returns the billing settings, or an unconfigured value with the default
// currency when billing is absent.
func (c *Config) StripeConfig() models.StripeConfig {
	if c.Billing == nil {
		return models.StripeConfig{Currency: models.DefaultCurrency}
	}
	return *c.Billing
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.Database == nil {
		missing = append(missing, "database")
	}
	if c.Auth == nil || (c.Auth.ClerkConfig == nil && c.Auth.JWTConfig == nil) {
		missing = append(missing, "auth.clerk or auth.jwt")
	}
	if c.Auth != nil && c.Auth.JWTConfig != nil && c.Auth.JWTConfig.Secret == "" {
		missing = append(missing, "auth.jwt.secret")
	}
	if c.Events.Kafka != nil && (len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "") {
		missing = append(missing, "events.kafka.brokers and events.kafka.topic")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
