// Package scheduler runs periodic maintenance jobs next to the HTTP server.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const sweepBatchSize = 100

type staleOrderLister interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PurchaseOrder, error)
}

type orderFailer interface {
	MarkFailed(ctx context.Context, orderNo string) (bool, error)
}

// OrderExpiryScheduler fails pending orders whose checkout never reported back, so
// abandoned checkouts do not stay pending forever. A late payment for a swept order
// is still logged by the webhook for manual review.
type OrderExpiryScheduler struct {
	orders   staleOrderLister
	gate     orderFailer
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewOrderExpiryScheduler(orders staleOrderLister, gate orderFailer, cfg models.OrdersConfig) *OrderExpiryScheduler {
	interval := time.Duration(cfg.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = models.DefaultOrderSweepIntervalMinutes * time.Minute
	}
	maxAge := time.Duration(cfg.ExpireAfterHours) * time.Hour
	if maxAge <= 0 {
		maxAge = models.DefaultOrderExpireAfterHours * time.Hour
	}

	return &OrderExpiryScheduler{
		orders:   orders,
		gate:     gate,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start blocks, sweeping every interval until Stop is called or ctx is done.
func (s *OrderExpiryScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("Order expiry scheduler started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			expired, err := s.RunOnce(ctx)
			if err != nil {
				fiberlog.Errorf("Error expiring stale orders: %v", err)
			} else if expired > 0 {
				fiberlog.Infof("Expired %d stale pending orders", expired)
			}
		case <-s.stopChan:
			fiberlog.Info("Order expiry scheduler stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("Order expiry scheduler stopped due to context cancellation")
			return
		}
	}
}

func (s *OrderExpiryScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce fails every pending order older than the configured age and returns how many
// transitioned. Orders paid concurrently are left alone by MarkFailed.
func (s *OrderExpiryScheduler) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	expired := 0

	for {
		orders, err := s.orders.ListStalePending(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return expired, err
		}

		changed := 0
		for _, order := range orders {
			ok, err := s.gate.MarkFailed(ctx, order.OrderNo)
			if err != nil {
				return expired, err
			}
			if ok {
				changed++
				fiberlog.Debugf("Order %s expired after %s without payment", order.OrderNo, s.maxAge)
			}
		}
		expired += changed

		if len(orders) < sweepBatchSize || changed == 0 {
			return expired, nil
		}
	}
}
