package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jayjaytrn/storefront-checkout/internal/metrics"
	"github.com/jayjaytrn/storefront-checkout/internal/notification"
	"github.com/jayjaytrn/storefront-checkout/models"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, draft models.OrderDraft) (*models.CheckoutResult, error)
	RequestPreference(ctx context.Context, orderID string) (*models.CheckoutResult, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*models.Order, error)
}

type NotificationProcessor interface {
	Process(ctx context.Context, paymentID string) (notification.Result, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Checkout CheckoutService
	Orders   OrderReader
	Receiver NotificationProcessor
	Database Pinger
	Metrics  *metrics.Metrics
	Logger   *zap.SugaredLogger
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var draft models.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.Logger.Debugw("error decoding checkout request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := h.Checkout.Checkout(r.Context(), draft)
	if err != nil {
		orderID := ""
		if result != nil {
			orderID = result.OrderID
		}
		h.writeError(w, err, orderID)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) RequestPreference(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	result, err := h.Checkout.RequestPreference(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err, orderID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Database.Ping(ctx); err != nil {
		h.Logger.Warnw("health check failed", "error", err)
		http.Error(w, "order store unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error, orderID string) {
	var (
		verr  *models.ValidationError
		gverr *models.GatewayValidationError
		guerr *models.GatewayUnavailableError
		suerr *models.StoreUnavailableError
	)

	resp := errorResponse{Error: err.Error(), OrderID: orderID}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Error = "validation failed"
		resp.Fields = verr.Fields
	case errors.As(err, &gverr):
		status = http.StatusUnprocessableEntity
		resp.Error = gverr.Error()
	case errors.As(err, &guerr):
		status = http.StatusServiceUnavailable
		resp.Error = "payment gateway unavailable, retry later"
	case errors.As(err, &suerr):
		status = http.StatusServiceUnavailable
		resp.Error = "order store unavailable, retry later"
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "order not found"
	case errors.Is(err, models.ErrOrderNotPending):
		status = http.StatusConflict
		resp.Error = "order is no longer pending payment"
	default:
		resp.Error = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Errorw("request failed", "status", status, "order_id", orderID, "error", err)
	} else {
		h.Logger.Infow("request rejected", "status", status, "order_id", orderID, "error", err)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
