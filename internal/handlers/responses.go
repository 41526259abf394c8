package handlers

import (
	"encoding/json"
	"time"

	"github.com/jayjaytrn/storefront-checkout/models"
)

type errorResponse struct {
	Error   string            `json:"error"`
	OrderID string            `json:"order_id,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type itemResponse struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Quantity          int    `json:"quantity"`
	UnitPrice         string `json:"unit_price"`
	CustomizationNote string `json:"customization_note,omitempty"`
}

type shippingResponse struct {
	CarrierName           string `json:"carrier_name"`
	Price                 string `json:"price"`
	EstimatedDays         int    `json:"estimated_days"`
	DestinationPostalCode string `json:"destination_postal_code"`
}

// orderResponse renders money at two decimals.
type orderResponse struct {
	ID              string               `json:"id"`
	Customer        models.Customer      `json:"customer"`
	Items           []itemResponse       `json:"items"`
	Shipping        shippingResponse     `json:"shipping"`
	SubtotalAmount  string               `json:"subtotal_amount"`
	TotalAmount     string               `json:"total_amount"`
	OrderStatus     models.OrderStatus   `json:"order_status"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	PaymentID       string               `json:"payment_id,omitempty"`
	PaymentSnapshot json.RawMessage      `json:"payment_snapshot,omitempty"`
	ReviewRequired  bool                 `json:"review_required"`
	ReviewReason    string               `json:"review_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			ProductID:         it.ProductID,
			Name:              it.Name,
			Description:       it.Description,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice.StringFixed(2),
			CustomizationNote: it.CustomizationNote,
		})
	}

	return orderResponse{
		ID:       o.ID,
		Customer: o.Customer,
		Items:    items,
		Shipping: shippingResponse{
			CarrierName:           o.Shipping.CarrierName,
			Price:                 o.Shipping.Price.StringFixed(2),
			EstimatedDays:         o.Shipping.EstimatedDays,
			DestinationPostalCode: o.Shipping.DestinationPostalCode,
		},
		SubtotalAmount:  o.SubtotalAmount.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		OrderStatus:     o.OrderStatus,
		PaymentStatus:   o.PaymentStatus,
		PaymentID:       o.PaymentID,
		PaymentSnapshot: o.PaymentSnapshot,
		ReviewRequired:  o.ReviewRequired,
		ReviewReason:    o.ReviewReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
