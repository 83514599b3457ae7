package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/observability"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Grant appends one grant row holding params.Amount spendable credits.
// A grant key that the user already used returns models.ErrDuplicateGrant.
func (s *CreditsService) Grant(ctx context.Context, params models.GrantParams) (*models.CreditTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "credits.Grant", trace.WithAttributes(
		attribute.String("user.id", params.UserID),
		attribute.Int64("credits.amount", params.Amount),
	))
	defer span.End()

	if strings.TrimSpace(params.UserID) == "" {
		return nil, models.ErrInvalidUser
	}
	if params.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	timer := prometheus.NewTimer(observability.LedgerDuration.WithLabelValues("grant"))
	defer timer.ObserveDuration()

	description := params.Description
	if description == "" {
		description = fmt.Sprintf("Granted %d credits", params.Amount)
	}

	row := models.CreditTransaction{
		UserID:           params.UserID,
		Kind:             models.CreditTransactionGrant,
		Credits:          params.Amount,
		RemainingCredits: params.Amount,
		Description:      description,
		OrderNo:          optional(params.OrderNo),
		GrantKey:         optional(params.GrantKey),
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.ErrDuplicateGrant
		}
		observability.RecordSpanError(span, err)
		return nil, fmt.Errorf("failed to create credit grant: %w", err)
	}

	observability.CreditsGranted.WithLabelValues(grantSource(params)).Add(float64(params.Amount))
	s.publish(ctx, events.LedgerEvent{
		Type:    events.TypeCreditsGranted,
		UserID:  row.UserID,
		Credits: row.Credits,
		OrderNo: params.OrderNo,
	})

	return &row, nil
}

// EnsureFreeCredits gives a user who never received credits the welcome bonus.
// Concurrent first requests race on the welcome grant key; the loser reports false.
func (s *CreditsService) EnsureFreeCredits(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, models.ErrInvalidUser
	}

	var granted int64
	err := s.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(credits), 0)").
		Where("user_id = ? AND kind = ?", userID, models.CreditTransactionGrant).
		Scan(&granted).Error
	if err != nil {
		return false, fmt.Errorf("failed to sum granted credits: %w", err)
	}
	if granted > 0 {
		return false, nil
	}

	_, err = s.Grant(ctx, models.GrantParams{
		UserID:      userID,
		Amount:      s.welcomeBonus,
		Description: models.WelcomeBonusDescription,
		GrantKey:    models.WelcomeBonusGrantKey,
	})
	if errors.Is(err, models.ErrDuplicateGrant) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	fiberlog.Infof("Granted %d welcome credits to user %s", s.welcomeBonus, userID)
	return true, nil
}

func grantSource(params models.GrantParams) string {
	switch {
	case params.GrantKey == models.WelcomeBonusGrantKey:
		return "welcome"
	case params.OrderNo != "":
		return "purchase"
	default:
		return "manual"
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
