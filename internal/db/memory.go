package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jayjaytrn/storefront-checkout/internal/lifecycle"
	"github.com/jayjaytrn/storefront-checkout/models"
)

// MemoryStore keeps orders in process memory. Used for local runs without
// Postgres and in tests.
type MemoryStore struct {
	mu            sync.RWMutex
	orders        map[string]*models.Order
	notifications []models.NotificationRecord

	now   func() time.Time
	newID func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*models.Order),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *MemoryStore) Create(_ context.Context, draft models.OrderDraft) (string, error) {
	order, err := models.NewOrder(s.newID(), draft, s.now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()

	return order.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ApplyPaymentUpdate(_ context.Context, orderID string, update models.PaymentUpdate) (models.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[orderID]
	if !ok {
		return models.UpdateResult{}, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}

	order := cloneOrder(stored)
	result := lifecycle.Apply(order, update, s.now().UTC())
	if result.Changed {
		s.orders[orderID] = order
	}
	result.Order = cloneOrder(order)
	return result, nil
}

func (s *MemoryStore) RecordNotification(_ context.Context, record models.NotificationRecord) error {
	s.mu.Lock()
	s.notifications = append(s.notifications, record)
	s.mu.Unlock()
	return nil
}

// Notifications returns a copy of the audit log.
func (s *MemoryStore) Notifications() []models.NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NotificationRecord(nil), s.notifications...)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaymentSnapshot != nil {
		c.PaymentSnapshot = append([]byte(nil), o.PaymentSnapshot...)
	}
	return &c
}

var _ Database = (*MemoryStore)(nil)
