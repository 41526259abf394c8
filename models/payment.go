package models

import (
	"encoding/json"
	"time"
)

// PaymentStatus uses the gateway's own vocabulary.
type PaymentStatus string

func (s PaymentStatus) String() string {
	return string(s)
}

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentApproved    PaymentStatus = "approved"
	PaymentAuthorized  PaymentStatus = "authorized"
	PaymentInProcess   PaymentStatus = "in_process"
	PaymentInMediation PaymentStatus = "in_mediation"
	PaymentRejected    PaymentStatus = "rejected"
	PaymentCancelled   PaymentStatus = "cancelled"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentChargedBack PaymentStatus = "charged_back"
)

// Payment is the authoritative payment object fetched from the gateway.
type Payment struct {
	ID                string
	Status            PaymentStatus
	StatusDetail      string
	ExternalReference string
	Raw               json.RawMessage
}

type PaymentUpdate struct {
	PaymentStatus   PaymentStatus
	PaymentID       string
	PaymentSnapshot json.RawMessage
}

// UpdateResult describes what ApplyPaymentUpdate did to an order.
type UpdateResult struct {
	Order      *Order
	From       OrderStatus
	To         OrderStatus
	Changed    bool
	Conflict   bool
	ConflictOn string
}

// Transitioned reports whether order_status moved.
func (r UpdateResult) Transitioned() bool {
	return r.From != r.To
}

type Preference struct {
	ID          string `json:"preference_id"`
	RedirectURL string `json:"redirect_url"`
}

type CheckoutResult struct {
	OrderID      string `json:"order_id"`
	PreferenceID string `json:"preference_id"`
	RedirectURL  string `json:"redirect_url"`
}

type NotificationOutcome string

const (
	OutcomeNoPaymentID      NotificationOutcome = "no_payment_id"
	OutcomeNoReference      NotificationOutcome = "no_external_reference"
	OutcomeUnknownOrder     NotificationOutcome = "unknown_order"
	OutcomeApplied          NotificationOutcome = "applied"
	OutcomeUnchanged        NotificationOutcome = "unchanged"
	OutcomeConflict         NotificationOutcome = "conflict"
	OutcomeGatewayFailure   NotificationOutcome = "gateway_failure"
	OutcomeStoreFailure     NotificationOutcome = "store_failure"
	OutcomeMethodNotAllowed NotificationOutcome = "method_not_allowed"
)

// NotificationRecord is one row of the payment notification audit log.
type NotificationRecord struct {
	PaymentID     string
	OrderID       string
	PaymentStatus PaymentStatus
	Outcome       NotificationOutcome
	ReceivedAt    time.Time
}

// OrderEvent is published when an order changes status or needs review.
type OrderEvent struct {
	OrderID       string        `json:"order_id"`
	From          OrderStatus   `json:"from"`
	To            OrderStatus   `json:"to"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     string        `json:"payment_id"`
	Review        bool          `json:"review_required"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
