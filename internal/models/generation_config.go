package models

const (
	DefaultGenerationModel     = "gemini-3-pro-image-preview"
	DefaultGenerationTimeoutMs = 60000
	DefaultMaxPromptLength     = 1000
	DefaultMaxImageBytes       = 10 * 1024 * 1024
)

// GenerationConfig configures the upstream image model.
type GenerationConfig struct {
	APIKey          string `json:"-" yaml:"api_key"`
	Model           string `json:"model,omitzero" yaml:"model"`
	TimeoutMs       int    `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
	MaxPromptLength int    `json:"max_prompt_length,omitzero" yaml:"max_prompt_length"`
	MaxImageBytes   int    `json:"max_image_bytes,omitzero" yaml:"max_image_bytes"`
	RateLimitRpm    int    `json:"rate_limit_rpm,omitzero" yaml:"rate_limit_rpm"`
}

type CreditsConfig struct {
	WelcomeBonus int64 `json:"welcome_bonus,omitzero" yaml:"welcome_bonus"`
}
