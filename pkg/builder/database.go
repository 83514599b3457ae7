package builder

import "github.com/pixora-ai/pixora-api/internal/models"

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

func (b *Builder) WithSQLite(path string) *Builder {
	return b.WithDatabase(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: path,
	})
}

// WithRedis enables the shared circuit breaker state.
func (b *Builder) WithRedis(url string) *Builder {
	b.cfg.Redis = &models.RedisConfig{URL: url}
	return b
}
