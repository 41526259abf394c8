package db

import (
	"context"

	"github.com/jayjaytrn/storefront-checkout/models"
)

// OrderStore persists order documents keyed by id.
type OrderStore interface {
	Create(ctx context.Context, draft models.OrderDraft) (string, error)
	Get(ctx context.Context, orderID string) (*models.Order, error)
	// ApplyPaymentUpdate is a read-modify-write scoped to one order and is
	// safe to repeat with the same or older data.
	ApplyPaymentUpdate(ctx context.Context, orderID string, update models.PaymentUpdate) (models.UpdateResult, error)
}

// NotificationLog is the append-only audit trail of processed webhooks.
type NotificationLog interface {
	RecordNotification(ctx context.Context, record models.NotificationRecord) error
}

type Database interface {
	OrderStore
	NotificationLog

	Ping(ctx context.Context) error
	Close() error
}
