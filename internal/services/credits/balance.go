package credits

import (
	"context"
	"fmt"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/observability"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetBalance returns the spendable credits of a user: the sum of what is left on
// their grants. Unknown users have a balance of zero.
func (s *CreditsService) GetBalance(ctx context.Context, userID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "credits.GetBalance", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	timer := prometheus.NewTimer(observability.LedgerDuration.WithLabelValues("balance"))
	defer timer.ObserveDuration()

	var balance int64
	err := s.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(remaining_credits), 0)").
		Where("user_id = ? AND kind = ? AND remaining_credits > 0", userID, models.CreditTransactionGrant).
		Scan(&balance).Error
	if err != nil {
		observability.RecordSpanError(span, err)
		return 0, fmt.Errorf("failed to calculate balance: %w", err)
	}

	span.SetAttributes(attribute.Int64("credits.balance", balance))
	return balance, nil
}

// HasCredits is the advisory pre-flight check before work that will consume a credit.
func (s *CreditsService) HasCredits(ctx context.Context, userID string) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}
