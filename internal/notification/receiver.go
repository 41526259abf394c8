package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jayjaytrn/storefront-checkout/internal/db"
	"github.com/jayjaytrn/storefront-checkout/internal/events"
	"github.com/jayjaytrn/storefront-checkout/internal/metrics"
	"github.com/jayjaytrn/storefront-checkout/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/jayjaytrn/storefront-checkout/internal/notification")

type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
}

type Store interface {
	db.OrderStore
	db.NotificationLog
}

type Result struct {
	Outcome models.NotificationOutcome
	OrderID string
	Update  models.UpdateResult
}

// Receiver reconciles orders with payment notifications. The notification
// only names a payment; its status is always re-read from the gateway.
type Receiver struct {
	gateway   PaymentFetcher
	store     Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.SugaredLogger
}

func NewReceiver(gw PaymentFetcher, store Store, publisher events.Publisher, m *metrics.Metrics, logger *zap.SugaredLogger) *Receiver {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Receiver{
		gateway:   gw,
		store:     store,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// Process handles one delivery. A non-nil error means the gateway should
// redeliver: the payment could not be fetched or the store failed.
func (r *Receiver) Process(ctx context.Context, paymentID string) (Result, error) {
	ctx, span := tracer.Start(ctx, "notification.Process")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	if paymentID == "" {
		r.logger.Infow("notification without payment id ignored")
		r.metrics.Notification(models.OutcomeNoPaymentID)
		return Result{Outcome: models.OutcomeNoPaymentID}, nil
	}

	payment, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		r.logger.Errorw("failed to fetch payment", "payment_id", paymentID, "error", err)
		r.finish(ctx, models.NotificationRecord{PaymentID: paymentID, Outcome: models.OutcomeGatewayFailure})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Outcome: models.OutcomeGatewayFailure}, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	record := models.NotificationRecord{
		PaymentID:     payment.ID,
		OrderID:       payment.ExternalReference,
		PaymentStatus: payment.Status,
	}

	if payment.ExternalReference == "" {
		r.logger.Warnw("payment without external_reference", "payment_id", payment.ID, "status", payment.Status)
		record.Outcome = models.OutcomeNoReference
		r.finish(ctx, record)
		return Result{Outcome: record.Outcome}, nil
	}
	span.SetAttributes(attribute.String("order.id", payment.ExternalReference))

	res, err := r.store.ApplyPaymentUpdate(ctx, payment.ExternalReference, models.PaymentUpdate{
		PaymentStatus:   payment.Status,
		PaymentID:       payment.ID,
		PaymentSnapshot: payment.Raw,
	})
	switch {
	case errors.Is(err, models.ErrNotFound):
		r.logger.Warnw("payment references unknown order", "payment_id", payment.ID, "order_id", payment.ExternalReference)
		record.Outcome = models.OutcomeUnknownOrder
		r.finish(ctx, record)
		return Result{Outcome: record.Outcome, OrderID: payment.ExternalReference}, nil
	case err != nil:
		r.logger.Errorw("failed to apply payment update", "payment_id", payment.ID, "order_id", payment.ExternalReference, "error", err)
		record.Outcome = models.OutcomeStoreFailure
		r.finish(ctx, record)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Outcome: record.Outcome, OrderID: payment.ExternalReference}, err
	}

	switch {
	case res.Conflict:
		record.Outcome = models.OutcomeConflict
		r.logger.Warnw("conflicting payment notification, order flagged for review",
			"order_id", payment.ExternalReference,
			"payment_id", payment.ID,
			"order_status", res.To,
			"payment_status", payment.Status,
			"reason", res.ConflictOn,
		)
	case res.Changed:
		record.Outcome = models.OutcomeApplied
		r.logger.Infow("payment notification applied",
			"order_id", payment.ExternalReference,
			"payment_id", payment.ID,
			"from", res.From,
			"to", res.To,
			"payment_status", payment.Status,
		)
	default:
		record.Outcome = models.OutcomeUnchanged
		r.logger.Debugw("payment notification changed nothing", "order_id", payment.ExternalReference, "payment_id", payment.ID)
	}

	if res.Transitioned() {
		r.metrics.Transition(res.From, res.To)
	}
	if res.Transitioned() || (res.Conflict && res.Changed) {
		r.publish(ctx, res, payment)
	}

	r.finish(ctx, record)
	return Result{Outcome: record.Outcome, OrderID: payment.ExternalReference, Update: res}, nil
}

// finish writes the audit record and counts the outcome. Audit failures are
// logged only.
func (r *Receiver) finish(ctx context.Context, record models.NotificationRecord) {
	r.metrics.Notification(record.Outcome)

	record.ReceivedAt = r.now().UTC()
	if err := r.store.RecordNotification(ctx, record); err != nil {
		r.logger.Warnw("failed to record payment notification", "payment_id", record.PaymentID, "error", err)
	}
}

func (r *Receiver) publish(ctx context.Context, res models.UpdateResult, payment *models.Payment) {
	event := models.OrderEvent{
		OrderID:       payment.ExternalReference,
		From:          res.From,
		To:            res.To,
		PaymentStatus: payment.Status,
		PaymentID:     payment.ID,
		Review:        res.Conflict,
		OccurredAt:    r.now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warnw("failed to publish order event", "order_id", event.OrderID, "error", err)
	}
}
