package builder

import (
	"github.com/pixora-ai/pixora-api/internal/config"

	"github.com/gofiber/fiber/v2"
)

// FromYAML loads envFiles, then the YAML config at path, and returns a builder seeded with it.
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}, nil
}
