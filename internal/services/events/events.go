package events

//go:generate mockgen -source=events.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"
)

const (
	TypeCreditsGranted  = "credits.granted"
	TypeCreditsConsumed = "credits.consumed"
	TypeOrderPaid       = "order.paid"
)

// LedgerEvent is emitted after a ledger mutation commits.
type LedgerEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Credits    int64     `json:"credits"`
	OrderNo    string    `json:"order_no,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers ledger events to downstream consumers. Delivery is best effort:
// the ledger row is the source of truth and publishing never rolls it back.
type Publisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that drops every event.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, LedgerEvent) error { return nil }

func (noopPublisher) Close() error { return nil }
