package builder

import (
	"github.com/pixora-ai/pixora-api/internal/config"
	"github.com/pixora-ai/pixora-api/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Builder assembles a config.Config in code as an alternative to a YAML file.
type Builder struct {
	cfg         *config.Config
	middlewares []fiber.Handler
}

func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Credits: models.CreditsConfig{
				WelcomeBonus: models.DefaultWelcomeBonusCredits,
			},
		},
		middlewares: []fiber.Handler{},
	}
}

// Build applies defaults and returns the assembled configuration.
func (b *Builder) Build() *config.Config {
	b.cfg.ApplyDefaults()
	return b.cfg
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}
