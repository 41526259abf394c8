package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/internal/cache"
	"github.com/jayjaytrn/storefront-checkout/internal/gateway"
	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	ShippingItemID = "shipping_cost"

	cacheOperation = "preference"
)

var tracer = otel.Tracer("github.com/jayjaytrn/storefront-checkout/internal/checkout")

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest, idempotencyKey string) (*models.Preference, error)
}

// Requester turns a stored order into a gateway checkout preference.
type Requester struct {
	gateway PreferenceCreator
	cache   cache.Cache

	currency        string
	storefrontURL   string
	notificationURL string
	window          time.Duration

	processStart time.Time
	now          func() time.Time
	logger       *zap.SugaredLogger
}

// NewRequester builds a Requester. c may be nil to disable the replay cache.
func NewRequester(cfg *config.Config, gw PreferenceCreator, c cache.Cache, logger *zap.SugaredLogger) *Requester {
	window := cfg.IdempotencyWindow
	if window <= 0 {
		window = 10 * time.Minute
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "BRL"
	}

	return &Requester{
		gateway:         gw,
		cache:           c,
		currency:        currency,
		storefrontURL:   strings.TrimRight(cfg.StorefrontURL, "/"),
		notificationURL: cfg.NotificationURL,
		window:          window,
		processStart:    time.Now(),
		now:             time.Now,
		logger:          logger,
	}
}

// IdempotencyKey is stable for one order within one window of one process.
func (r *Requester) IdempotencyKey(orderID string, at time.Time) string {
	windowStart := at.Truncate(r.window)
	return fmt.Sprintf("%s-%d-%d", orderID, r.processStart.UnixMilli(), windowStart.UnixMilli())
}

func (r *Requester) Request(ctx context.Context, order *models.Order) (*models.Preference, error) {
	ctx, span := tracer.Start(ctx, "checkout.RequestPreference")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID))

	payload, err := r.BuildPreference(order)
	if err != nil {
		return nil, err
	}

	key := r.IdempotencyKey(order.ID, r.now())
	if cached := r.cached(ctx, key); cached != nil {
		r.logger.Infow("reusing preference", "order_id", order.ID, "preference_id", cached.ID)
		return cached, nil
	}

	pref, err := r.gateway.CreatePreference(ctx, payload, key)
	if err != nil {
		r.logger.Warnw("failed to create preference", "order_id", order.ID, "idempotency_key", key, "error", err)
		return nil, err
	}

	r.remember(ctx, key, pref)
	r.logger.Infow("preference created", "order_id", order.ID, "preference_id", pref.ID)
	return pref, nil
}

// BuildPreference maps an order onto the gateway payload. The item subtotal
// is recomputed and must match what was stored at creation.
func (r *Requester) BuildPreference(order *models.Order) (gateway.PreferenceRequest, error) {
	subtotal := order.ItemsSubtotal()
	verr := &models.ValidationError{}
	if len(order.Items) == 0 {
		verr.Add("items", "order has no items")
	}
	if !subtotal.Equal(order.SubtotalAmount) {
		verr.Add("subtotal_amount", fmt.Sprintf("items total %s, order stores %s", subtotal.StringFixed(2), order.SubtotalAmount.StringFixed(2)))
	}
	if !subtotal.Add(order.Shipping.Price).Equal(order.TotalAmount) {
		verr.Add("total_amount", "does not equal subtotal plus shipping")
	}
	if err := verr.OrNil(); err != nil {
		return gateway.PreferenceRequest{}, err
	}

	items := make([]gateway.PreferenceItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		description := it.Description
		if description == "" {
			description = it.Name
		}
		items = append(items, gateway.PreferenceItem{
			ID:          it.ProductID,
			Title:       it.Name,
			Description: description,
			Quantity:    it.Quantity,
			UnitPrice:   price(it.UnitPrice),
			CurrencyID:  r.currency,
		})
	}
	items = append(items, gateway.PreferenceItem{
		ID:          ShippingItemID,
		Title:       "Shipping - " + order.Shipping.CarrierName,
		Description: "Order shipping cost",
		Quantity:    1,
		UnitPrice:   price(order.Shipping.Price),
		CurrencyID:  r.currency,
	})

	return gateway.PreferenceRequest{
		Items:             items,
		Payer:             payer(order.Customer),
		BackURLs:          r.backURLs(order.ID),
		AutoReturn:        "approved",
		ExternalReference: order.ID,
		NotificationURL:   r.notificationURL,
	}, nil
}

func (r *Requester) backURLs(orderID string) gateway.BackURLs {
	build := func(result string) string {
		q := url.Values{}
		q.Set("order_id", orderID)
		return r.storefrontURL + "/payment/" + result + "?" + q.Encode()
	}
	return gateway.BackURLs{
		Success: build("success"),
		Failure: build("failure"),
		Pending: build("pending"),
	}
}

func (r *Requester) cached(ctx context.Context, key string) *models.Preference {
	if r.cache == nil {
		return nil
	}
	value, err := r.cache.Get(ctx, r.cache.GenerateKey(cacheOperation, key))
	if err != nil {
		r.logger.Warnw("preference cache lookup failed", "error", err)
		return nil
	}
	if value == "" {
		return nil
	}
	var pref models.Preference
	if err = json.Unmarshal([]byte(value), &pref); err != nil || pref.ID == "" {
		return nil
	}
	return &pref
}

func (r *Requester) remember(ctx context.Context, key string, pref *models.Preference) {
	if r.cache == nil {
		return
	}
	value, err := json.Marshal(pref)
	if err != nil {
		return
	}
	if err = r.cache.Set(ctx, r.cache.GenerateKey(cacheOperation, key), string(value), r.window); err != nil {
		r.logger.Warnw("failed to cache preference", "error", err)
	}
}

func price(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func payer(c models.Customer) gateway.Payer {
	p := gateway.Payer{Email: c.Email}

	names := strings.Fields(c.Name)
	if len(names) > 0 {
		p.Name = names[0]
		p.Surname = strings.Join(names[1:], " ")
	}

	if len(c.Phone) > 2 {
		p.Phone = &gateway.Phone{AreaCode: c.Phone[:2], Number: c.Phone[2:]}
	}
	if c.TaxID != "" {
		p.Identification = &gateway.Identification{Type: "CPF", Number: c.TaxID}
	}
	if c.Address.PostalCode != "" {
		p.Address = &gateway.PayerAddress{
			ZipCode:      c.Address.PostalCode,
			StreetName:   c.Address.Street,
			StreetNumber: c.Address.Number,
		}
	}
	return p
}
