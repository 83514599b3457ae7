package models

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

const (
	DefaultCurrency = "usd"

	DefaultOrderExpireAfterHours     = 7 * 24
	DefaultOrderSweepIntervalMinutes = 60
)

// OrdersConfig controls the sweep that fails orders whose webhook never arrived.
// ExpireAfterHours must outlast the slowest asynchronous payment method.
type OrdersConfig struct {
	ExpireAfterHours     int `json:"expire_after_hours,omitzero" yaml:"expire_after_hours"`
	SweepIntervalMinutes int `json:"sweep_interval_minutes,omitzero" yaml:"sweep_interval_minutes"`
}

// PurchaseOrder is created when checkout starts and moves exactly once to paid or failed.
type PurchaseOrder struct {
	ID               uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo          string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_no"`
	UserID           string      `gorm:"not null;index" json:"user_id"`
	Status           OrderStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Amount           int64       `gorm:"not null" json:"amount"`
	Currency         string      `gorm:"type:varchar(8);not null;default:'usd'" json:"currency"`
	PlanID           string      `gorm:"type:varchar(32);not null" json:"plan_id"`
	CreditsAmount    int64       `gorm:"not null" json:"credits_amount"`
	PaymentSessionID string      `json:"payment_session_id,omitempty"`
	PaidAt           *time.Time  `json:"paid_at,omitempty"`
	CreatedAt        time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type FulfillParams struct {
	OrderNo          string
	UserID           string
	Credits          int64
	PaymentSessionID string
}

type FulfillResult struct {
	Applied bool
	Order   *PurchaseOrder
}

// StripeWebhookEvent records a processed Stripe event id so redeliveries short-circuit.
type StripeWebhookEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	EventID     string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	EventType   string    `gorm:"type:varchar(100);not null;index"`
	ProcessedAt time.Time `gorm:"not null;autoCreateTime"`
}
