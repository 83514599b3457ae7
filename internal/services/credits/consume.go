package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/observability"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxConsumeAttempts = 3

var (
	errNoEligibleGrant = errors.New("no grant with remaining credits")
	errGrantContended  = errors.New("grant drained by a concurrent consumer")
)

// Consume spends exactly one credit from the oldest grant that still has credits.
// It returns false, writing nothing, when the user has no spendable credits.
func (s *CreditsService) Consume(ctx context.Context, userID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "credits.Consume", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	timer := prometheus.NewTimer(observability.LedgerDuration.WithLabelValues("consume"))
	defer timer.ObserveDuration()

	for attempt := 1; attempt <= maxConsumeAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return consumeOldest(tx, userID)
		})

		switch {
		case err == nil:
			observability.ConsumeAttempts.WithLabelValues("consumed").Inc()
			s.publish(ctx, events.LedgerEvent{Type: events.TypeCreditsConsumed, UserID: userID, Credits: -1})
			return true, nil
		case errors.Is(err, errNoEligibleGrant):
			observability.ConsumeAttempts.WithLabelValues("empty").Inc()
			return false, nil
		case errors.Is(err, errGrantContended):
			fiberlog.Debugf("Consume for user %s lost a race on attempt %d, retrying", userID, attempt)
			continue
		default:
			observability.ConsumeAttempts.WithLabelValues("error").Inc()
			observability.RecordSpanError(span, err)
			return false, err
		}
	}

	observability.ConsumeAttempts.WithLabelValues("error").Inc()
	err := fmt.Errorf("failed to consume credit for user %s after %d attempts: %w", userID, maxConsumeAttempts, errGrantContended)
	observability.RecordSpanError(span, err)
	return false, err
}

func consumeOldest(tx *gorm.DB, userID string) error {
	var grant models.CreditTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND kind = ? AND remaining_credits > 0", userID, models.CreditTransactionGrant).
		Order("created_at ASC").
		Order("id ASC").
		Take(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errNoEligibleGrant
	}
	if err != nil {
		return fmt.Errorf("failed to lock oldest grant: %w", err)
	}

	result := tx.Model(&models.CreditTransaction{}).
		Where("id = ? AND remaining_credits > 0", grant.ID).
		UpdateColumn("remaining_credits", gorm.Expr("remaining_credits - ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement grant %d: %w", grant.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return errGrantContended
	}

	usage := models.CreditTransaction{
		UserID:           userID,
		Kind:             models.CreditTransactionConsume,
		Credits:          -1,
		RemainingCredits: 0,
		Description:      models.ConsumeDescription,
	}
	if err := tx.Create(&usage).Error; err != nil {
		return fmt.Errorf("failed to record consumption: %w", err)
	}

	return nil
}
