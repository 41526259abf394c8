package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

func (s OrderStatus) String() string {
	return string(s)
}

const (
	OrderPendingPayment   OrderStatus = "pending_payment"
	OrderPaymentApproved  OrderStatus = "payment_approved"
	OrderPaymentRejected  OrderStatus = "payment_rejected"
	OrderPaymentCancelled OrderStatus = "payment_cancelled"
)

// IsTerminal reports whether no further notification may move the order.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderPaymentApproved || s == OrderPaymentRejected || s == OrderPaymentCancelled
}

type Address struct {
	PostalCode string `json:"postal_code"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type Customer struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	TaxID   string  `json:"tax_id"`
	Address Address `json:"address"`
}

type OrderItem struct {
	ProductID         string          `json:"product_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	CustomizationNote string          `json:"customization_note,omitempty"`
}

// LineTotal is quantity * unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Shipping struct {
	CarrierName           string          `json:"carrier_name"`
	Price                 decimal.Decimal `json:"price"`
	EstimatedDays         int             `json:"estimated_days"`
	DestinationPostalCode string          `json:"destination_postal_code"`
}

// Order is the persisted checkout document. Customer, items, shipping and
// amounts never change after creation.
type Order struct {
	ID              string          `json:"id"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"items"`
	Shipping        Shipping        `json:"shipping"`
	SubtotalAmount  decimal.Decimal `json:"subtotal_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	OrderStatus     OrderStatus     `json:"order_status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentID       string          `json:"payment_id,omitempty"`
	PaymentSnapshot json.RawMessage `json:"payment_snapshot,omitempty"`
	ReviewRequired  bool            `json:"review_required,omitempty"`
	ReviewReason    string          `json:"review_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderDraft is what the storefront submits at checkout.
type OrderDraft struct {
	Customer Customer    `json:"customer"`
	Items    []DraftItem `json:"items"`
	Shipping *Shipping   `json:"shipping"`
}

type DraftItem struct {
	ProductID         string           `json:"product_id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	PromotionalPrice  *decimal.Decimal `json:"promotional_price,omitempty"`
	CustomizationNote string           `json:"customization_note,omitempty"`
}

// EffectivePrice is the promotional price when it undercuts the list price.
func (i DraftItem) EffectivePrice() decimal.Decimal {
	if i.PromotionalPrice != nil && i.PromotionalPrice.LessThan(i.UnitPrice) {
		return *i.PromotionalPrice
	}
	return i.UnitPrice
}
