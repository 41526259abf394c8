package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	stateRe = regexp.MustCompile(`^[A-Za-z]{2}$`)
	nonDig  = regexp.MustCompile(`\D`)
)

func digits(s string) string {
	return nonDig.ReplaceAllString(s, "")
}

// Normalize trims customer fields and strips formatting from numeric ones.
func (d *OrderDraft) Normalize() {
	c := &d.Customer
	c.Name = strings.Join(strings.Fields(c.Name), " ")
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = digits(c.Phone)
	c.TaxID = digits(c.TaxID)

	a := &c.Address
	a.PostalCode = digits(a.PostalCode)
	a.Street = strings.TrimSpace(a.Street)
	a.Number = strings.TrimSpace(a.Number)
	a.Complement = strings.TrimSpace(a.Complement)
	a.District = strings.TrimSpace(a.District)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))

	for i := range d.Items {
		d.Items[i].CustomizationNote = strings.TrimSpace(d.Items[i].CustomizationNote)
	}
	if d.Shipping != nil {
		d.Shipping.DestinationPostalCode = digits(d.Shipping.DestinationPostalCode)
	}
}

// Validate checks a normalized draft.
func (d *OrderDraft) Validate() error {
	verr := &ValidationError{}
	c := d.Customer

	switch {
	case c.Name == "":
		verr.Add("customer.name", "required")
	case len(strings.Fields(c.Name)) < 2:
		verr.Add("customer.name", "first and last name required")
	}
	switch {
	case c.Email == "":
		verr.Add("customer.email", "required")
	case !emailRe.MatchString(c.Email):
		verr.Add("customer.email", "invalid")
	}
	switch {
	case c.Phone == "":
		verr.Add("customer.phone", "required")
	case len(c.Phone) < 10 || len(c.Phone) > 11:
		verr.Add("customer.phone", "must have 10 or 11 digits")
	}
	switch {
	case c.TaxID == "":
		verr.Add("customer.tax_id", "required")
	case len(c.TaxID) != 11:
		verr.Add("customer.tax_id", "must have 11 digits")
	}

	a := c.Address
	switch {
	case a.PostalCode == "":
		verr.Add("customer.address.postal_code", "required")
	case len(a.PostalCode) != 8:
		verr.Add("customer.address.postal_code", "must have 8 digits")
	}
	for field, v := range map[string]string{
		"customer.address.street":   a.Street,
		"customer.address.number":   a.Number,
		"customer.address.district": a.District,
		"customer.address.city":     a.City,
	} {
		if v == "" {
			verr.Add(field, "required")
		}
	}
	switch {
	case a.State == "":
		verr.Add("customer.address.state", "required")
	case !stateRe.MatchString(a.State):
		verr.Add("customer.address.state", "must be a two letter code")
	}

	if len(d.Items) == 0 {
		verr.Add("items", "at least one item required")
	}
	for i, it := range d.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductID) == "" {
			verr.Add(prefix+".product_id", "required")
		}
		if strings.TrimSpace(it.Name) == "" {
			verr.Add(prefix+".name", "required")
		}
		if it.Quantity < 1 {
			verr.Add(prefix+".quantity", "must be at least 1")
		}
		validateMoney(verr, prefix+".unit_price", it.UnitPrice)
		if it.PromotionalPrice != nil {
			validateMoney(verr, prefix+".promotional_price", *it.PromotionalPrice)
		}
	}

	if d.Shipping == nil {
		verr.Add("shipping", "a shipping quote must be selected")
	} else {
		if strings.TrimSpace(d.Shipping.CarrierName) == "" {
			verr.Add("shipping.carrier_name", "required")
		}
		validateMoney(verr, "shipping.price", d.Shipping.Price)
		if d.Shipping.EstimatedDays < 0 {
			verr.Add("shipping.estimated_days", "must not be negative")
		}
	}

	return verr.OrNil()
}

func validateMoney(verr *ValidationError, field string, v decimal.Decimal) {
	switch {
	case v.IsNegative():
		verr.Add(field, "must not be negative")
	case !v.Equal(v.Round(2)):
		verr.Add(field, "at most two decimal places")
	}
}

// NewOrder validates draft and snapshots it into a pending order.
func NewOrder(id string, draft OrderDraft, now time.Time) (*Order, error) {
	draft.Items = append([]DraftItem(nil), draft.Items...)
	if draft.Shipping != nil {
		s := *draft.Shipping
		draft.Shipping = &s
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(draft.Items))
	subtotal := decimal.Zero
	for _, it := range draft.Items {
		item := OrderItem{
			ProductID:         strings.TrimSpace(it.ProductID),
			Name:              strings.TrimSpace(it.Name),
			Description:       it.Description,
			Quantity:          it.Quantity,
			UnitPrice:         it.EffectivePrice(),
			CustomizationNote: it.CustomizationNote,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	shipping := *draft.Shipping
	if shipping.DestinationPostalCode == "" {
		shipping.DestinationPostalCode = draft.Customer.Address.PostalCode
	}

	now = now.UTC()
	return &Order{
		ID:             id,
		Customer:       draft.Customer,
		Items:          items,
		Shipping:       shipping,
		SubtotalAmount: subtotal.Round(2),
		TotalAmount:    subtotal.Add(shipping.Price).Round(2),
		OrderStatus:    OrderPendingPayment,
		PaymentStatus:  PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ItemsSubtotal recomputes the subtotal from the item snapshot.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum.Round(2)
}
