package models

import "time"

type CreditTransactionKind string

const (
	CreditTransactionGrant   CreditTransactionKind = "grant"
	CreditTransactionConsume CreditTransactionKind = "consume"
)

const (
	// WelcomeBonusGrantKey marks the one-time free credit grant of a user.
	WelcomeBonusGrantKey = "welcome_bonus"

	DefaultWelcomeBonusCredits = 5

	WelcomeBonusDescription = "Welcome bonus - free credits"
	ConsumeDescription      = "Image generation"
)

// OrderGrantKey is the grant key used when an order is fulfilled, one grant per order.
func OrderGrantKey(orderNo string) string {
	return "order:" + orderNo
}

// CreditTransaction is a ledger row. Grant rows track how much of the allotment is
// still unspent in RemainingCredits; consume rows always carry Credits=-1 and
// RemainingCredits=0.
type CreditTransaction struct {
	ID               uint                  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           string                `gorm:"not null;index;uniqueIndex:ux_credit_transactions_user_grant_key,priority:1" json:"user_id"`
	Kind             CreditTransactionKind `gorm:"type:varchar(16);not null;index" json:"kind"`
	Credits          int64                 `gorm:"not null" json:"credits"`
	RemainingCredits int64                 `gorm:"not null;default:0" json:"remaining_credits"`
	Description      string                `json:"description"`
	OrderNo          *string               `gorm:"index" json:"order_no,omitempty"`
	GrantKey         *string               `gorm:"type:varchar(191);uniqueIndex:ux_credit_transactions_user_grant_key,priority:2" json:"-"`
	CreatedAt        time.Time             `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

type GrantParams struct {
	UserID      string
	Amount      int64
	OrderNo     string
	Description string
	GrantKey    string
}
