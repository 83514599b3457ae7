package builder

import (
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
)

func (b *Builder) WithStripe(secretKey, webhookSecret string) *Builder {
	currency := models.DefaultCurrency
	if b.cfg.Billing != nil && b.cfg.Billing.Currency != "" {
		currency = b.cfg.Billing.Currency
	}

	b.cfg.Billing = &models.StripeConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		Currency:      currency,
	}
	return b
}

func (b *Builder) GetStripeConfig() (secretKey, webhookSecret string, configured bool) {
	if b.cfg.Billing != nil {
		return b.cfg.Billing.SecretKey, b.cfg.Billing.WebhookSecret, true
	}
	return "", "", false
}

func (b *Builder) WithWelcomeBonus(credits int64) *Builder {
	b.cfg.Credits.WelcomeBonus = credits
	return b
}

// WithOrderExpiry fails pending orders older than expireAfter, checking every interval.
func (b *Builder) WithOrderExpiry(expireAfter, interval time.Duration) *Builder {
	b.cfg.Orders.ExpireAfterHours = int(expireAfter / time.Hour)
	b.cfg.Orders.SweepIntervalMinutes = int(interval / time.Minute)
	return b
}
