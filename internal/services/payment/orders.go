package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderSuffixLength = 6

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// GenerateOrderNo returns ORD-<unix millis>-<6 upper-case alphanumerics>.
func GenerateOrderNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:orderSuffixLength]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func (s *OrderService) Create(ctx context.Context, order *models.PurchaseOrder) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.Currency == "" {
		order.Currency = models.DefaultCurrency
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order %s: %w", order.OrderNo, err)
	}
	return nil
}

func (s *OrderService) GetByOrderNo(ctx context.Context, orderNo string) (*models.PurchaseOrder, error) {
	return findOrder(s.db.WithContext(ctx), orderNo)
}

// GetForUser hides orders of other users behind models.ErrOrderNotFound.
func (s *OrderService) GetForUser(ctx context.Context, orderNo, userID string) (*models.PurchaseOrder, error) {
	order, err := s.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

// ListStalePending returns up to limit pending orders created before createdBefore, oldest first.
func (s *OrderService) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	return orders, nil
}

func findOrder(db *gorm.DB, orderNo string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := db.Where("order_no = ?", orderNo).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderNo, err)
	}
	return &order, nil
}
