package checkout

import (
	"context"
	"fmt"

	"github.com/jayjaytrn/storefront-checkout/internal/db"
	"github.com/jayjaytrn/storefront-checkout/models"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PreferenceRequester interface {
	Request(ctx context.Context, order *models.Order) (*models.Preference, error)
}

// Service runs a checkout submission: create the order, then ask the
// gateway for a preference.
type Service struct {
	store     db.OrderStore
	requester PreferenceRequester
	logger    *zap.SugaredLogger
}

func NewService(store db.OrderStore, requester PreferenceRequester, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:     store,
		requester: requester,
		logger:    logger,
	}
}

// Checkout creates the order and requests its preference. When the order was
// stored but the preference failed, the returned result still carries
// OrderID so the caller can retry with RequestPreference.
func (s *Service) Checkout(ctx context.Context, draft models.OrderDraft) (*models.CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout")
	defer span.End()

	orderID, err := s.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", orderID))
	s.logger.Infow("order created", "order_id", orderID)

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return &models.CheckoutResult{OrderID: orderID}, fmt.Errorf("failed to reload order %s: %w", orderID, err)
	}

	return s.request(ctx, order)
}

// RequestPreference re-requests a preference for an order still pending payment.
func (s *Service) RequestPreference(ctx context.Context, orderID string) (*models.CheckoutResult, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus != models.OrderPendingPayment {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.OrderStatus, models.ErrOrderNotPending)
	}

	return s.request(ctx, order)
}

func (s *Service) request(ctx context.Context, order *models.Order) (*models.CheckoutResult, error) {
	pref, err := s.requester.Request(ctx, order)
	if err != nil {
		return &models.CheckoutResult{OrderID: order.ID}, err
	}

	return &models.CheckoutResult{
		OrderID:      order.ID,
		PreferenceID: pref.ID,
		RedirectURL:  pref.RedirectURL,
	}, nil
}
