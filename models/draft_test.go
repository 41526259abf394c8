package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() OrderDraft {
	return OrderDraft{
		Customer: Customer{
			Name:  "Maria  da Silva",
			Email: "maria@example.com",
			Phone: "(22) 99876-5432",
			TaxID: "123.456.789-09",
			Address: Address{
				PostalCode: "28979-440",
				Street:     "Rua das Flores",
				Number:     "42",
				District:   "Centro",
				City:       "Araruama",
				State:      "rj",
			},
		},
		Items: []DraftItem{
			{ProductID: "p1", Name: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00")},
			{ProductID: "p2", Name: "Frame", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		},
		Shipping: &Shipping{CarrierName: "PAC", Price: decimal.RequireFromString("20.00"), EstimatedDays: 5},
	}
}

func TestNewOrderTotals(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	order, err := NewOrder("order-1", validDraft(), now)
	require.NoError(t, err)

	assert.True(t, order.SubtotalAmount.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("170.00")))
	assert.True(t, order.TotalAmount.Equal(order.SubtotalAmount.Add(order.Shipping.Price)))
	assert.Equal(t, OrderPendingPayment, order.OrderStatus)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
	assert.Equal(t, now, order.CreatedAt)
	assert.Equal(t, now, order.UpdatedAt)
	assert.Empty(t, order.PaymentID)
}

func TestNewOrderNormalizesCustomer(t *testing.T) {
	order, err := NewOrder("order-1", validDraft(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Maria da Silva", order.Customer.Name)
	assert.Equal(t, "22998765432", order.Customer.Phone)
	assert.Equal(t, "12345678909", order.Customer.TaxID)
	assert.Equal(t, "28979440", order.Customer.Address.PostalCode)
	assert.Equal(t, "RJ", order.Customer.Address.State)
	assert.Equal(t, "28979440", order.Shipping.DestinationPostalCode)
}

func TestNewOrderUsesLowerPromotionalPrice(t *testing.T) {
	draft := validDraft()
	promo := decimal.RequireFromString("40.00")
	higher := decimal.RequireFromString("60.00")
	draft.Items[0].PromotionalPrice = &promo
	draft.Items[1].PromotionalPrice = &higher

	order, err := NewOrder("order-1", draft, time.Now())
	require.NoError(t, err)

	assert.True(t, order.Items[0].UnitPrice.Equal(promo))
	assert.True(t, order.Items[1].UnitPrice.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, order.SubtotalAmount.Equal(decimal.RequireFromString("130.00")))
}

func TestNewOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *OrderDraft)
		field  string
	}{
		{"no items", func(d *OrderDraft) { d.Items = nil }, "items"},
		{"no shipping", func(d *OrderDraft) { d.Shipping = nil }, "shipping"},
		{"single name", func(d *OrderDraft) { d.Customer.Name = "Maria" }, "customer.name"},
		{"bad email", func(d *OrderDraft) { d.Customer.Email = "maria.example.com" }, "customer.email"},
		{"short phone", func(d *OrderDraft) { d.Customer.Phone = "12345" }, "customer.phone"},
		{"bad tax id", func(d *OrderDraft) { d.Customer.TaxID = "123" }, "customer.tax_id"},
		{"bad state", func(d *OrderDraft) { d.Customer.Address.State = "Rio" }, "customer.address.state"},
		{"missing city", func(d *OrderDraft) { d.Customer.Address.City = " " }, "customer.address.city"},
		{"zero quantity", func(d *OrderDraft) { d.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative price", func(d *OrderDraft) { d.Items[1].UnitPrice = decimal.NewFromInt(-1) }, "items[1].unit_price"},
		{"three decimals", func(d *OrderDraft) { d.Items[0].UnitPrice = decimal.RequireFromString("1.005") }, "items[0].unit_price"},
		{"no carrier", func(d *OrderDraft) { d.Shipping.CarrierName = "" }, "shipping.carrier_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(&draft)

			_, err := NewOrder("order-1", draft, time.Now())

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestGatewayValidationErrorFlattensCauses(t *testing.T) {
	err := &GatewayValidationError{
		StatusCode: 400,
		Message:    "invalid",
		Causes: []GatewayCause{
			{Code: "2067", Description: "invalid user identification number"},
			{Description: "unit_price invalid"},
		},
	}

	assert.Equal(t, "Code 2067: invalid user identification number; Code N/A: unit_price invalid", err.Error())
}
