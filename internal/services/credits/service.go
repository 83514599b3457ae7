// Package credits implements the credit ledger: balances are derived from grant rows,
// grants add rows, and consumption drains the oldest grant first.
package credits

import (
	"context"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/events"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/pixora-ai/pixora-api/internal/services/credits"

type CreditsService struct {
	db           *gorm.DB
	publisher    events.Publisher
	welcomeBonus int64
	tracer       trace.Tracer
	inTx         bool
}

func NewCreditsService(db *gorm.DB, publisher events.Publisher, welcomeBonus int64) *CreditsService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if welcomeBonus <= 0 {
		welcomeBonus = models.DefaultWelcomeBonusCredits
	}
	return &CreditsService{
		db:           db,
		publisher:    publisher,
		welcomeBonus: welcomeBonus,
		tracer:       otel.Tracer(tracerName),
	}
}

// WithTx returns a service bound to an open transaction. Events are not published from
// a bound service because the caller owns the commit.
func (s *CreditsService) WithTx(tx *gorm.DB) *CreditsService {
	return &CreditsService{
		db:           tx,
		publisher:    events.NewNoopPublisher(),
		welcomeBonus: s.welcomeBonus,
		tracer:       s.tracer,
		inTx:         true,
	}
}

// AutoMigrate runs database migrations for the ledger table
func (s *CreditsService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.CreditTransaction{})
}

func (s *CreditsService) publish(ctx context.Context, event events.LedgerEvent) {
	if s.inTx {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		fiberlog.Warnf("Failed to publish %s event for user %s: %v", event.Type, event.UserID, err)
	}
}
