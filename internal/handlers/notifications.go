package handlers

import (
	"io"
	"net/http"

	"github.com/jayjaytrn/storefront-checkout/internal/notification"
	"github.com/jayjaytrn/storefront-checkout/models"
)

const maxNotificationBytes = 64 << 10

// PaymentNotification is the public gateway webhook. It answers 200 unless
// a retry could help (5xx) or the method is wrong (405).
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.Logger.Warnw("notification with unsupported method", "method", r.Method)
		h.Metrics.Notification(models.OutcomeMethodNotAllowed)
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed.", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		h.Logger.Warnw("failed to read notification body", "error", err)
		body = nil
	}

	paymentID := notification.ExtractPaymentID(body, r.URL.Query())
	h.Logger.Infow("payment notification received", "payment_id", paymentID, "query", r.URL.RawQuery)

	result, err := h.Receiver.Process(r.Context(), paymentID)
	if err != nil {
		http.Error(w, "notification processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK. " + string(result.Outcome)))
}
