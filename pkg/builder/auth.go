package builder

import "github.com/pixora-ai/pixora-api/internal/models"

func (b *Builder) ensureAuth() *models.AuthConfig {
	if b.cfg.Auth == nil {
		b.cfg.Auth = &models.AuthConfig{}
	}
	return b.cfg.Auth
}

// WithClerk verifies Clerk session tokens. webhookSecret enables the user.created webhook.
func (b *Builder) WithClerk(secretKey, webhookSecret string) *Builder {
	b.ensureAuth().ClerkConfig = &models.ClerkAuthConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
	}
	return b
}

func (b *Builder) WithJWT(secret, issuer string) *Builder {
	b.ensureAuth().JWTConfig = &models.JWTAuthConfig{
		Secret: secret,
		Issuer: issuer,
	}
	return b
}
