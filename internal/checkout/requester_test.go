package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/internal/gateway"
	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	reqs  []gateway.PreferenceRequest
	err   error
}

func (g *fakeGateway) CreatePreference(_ context.Context, req gateway.PreferenceRequest, key string) (*models.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, key)
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return nil, g.err
	}
	return &models.Preference{ID: fmt.Sprintf("pref-%d", len(g.calls)), RedirectURL: "https://gw/init/" + req.ExternalReference}, nil
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *fakeCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func testConfig() *config.Config {
	return &config.Config{
		Currency:          "BRL",
		StorefrontURL:     "https://shop.example.com/",
		NotificationURL:   "https://api.example.com/api/payments/notifications",
		IdempotencyWindow: 10 * time.Minute,
	}
}

func testDraft() models.OrderDraft {
	return models.OrderDraft{
		Customer: models.Customer{
			Name:  "Maria da Silva",
			Email: "maria@example.com",
			Phone: "(22) 99876-5432",
			TaxID: "123.456.789-09",
			Address: models.Address{
				PostalCode: "28979-440",
				Street:     "Rua das Flores",
				Number:     "42",
				District:   "Centro",
				City:       "Araruama",
				State:      "rj",
			},
		},
		Items: []models.DraftItem{
			{ProductID: "p1", Name: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00")},
			{ProductID: "p2", Name: "Bowl", Description: "Painted bowl", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		},
		Shipping: &models.Shipping{CarrierName: "PAC", Price: decimal.RequireFromString("20.00"), EstimatedDays: 5},
	}
}

func testOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := models.NewOrder("order-1", testDraft(), time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return order
}

func newTestRequester(gw PreferenceCreator, c *fakeCache) *Requester {
	r := NewRequester(testConfig(), gw, nil, zap.NewNop().Sugar())
	if c != nil {
		r.cache = c
	}
	r.processStart = time.UnixMilli(1_700_000_000_000)
	return r
}

func TestBuildPreference(t *testing.T) {
	r := newTestRequester(&fakeGateway{}, nil)

	req, err := r.BuildPreference(testOrder(t))
	require.NoError(t, err)

	require.Len(t, req.Items, 3)
	assert.Equal(t, "50.00", req.Items[0].UnitPrice.String())
	assert.Equal(t, "Mug", req.Items[0].Description)
	assert.Equal(t, "Painted bowl", req.Items[1].Description)

	shipping := req.Items[2]
	assert.Equal(t, ShippingItemID, shipping.ID)
	assert.Equal(t, "Shipping - PAC", shipping.Title)
	assert.Equal(t, 1, shipping.Quantity)
	assert.Equal(t, "20.00", shipping.UnitPrice.String())
	assert.Equal(t, "BRL", shipping.CurrencyID)

	assert.Equal(t, "Maria", req.Payer.Name)
	assert.Equal(t, "da Silva", req.Payer.Surname)
	assert.Equal(t, "maria@example.com", req.Payer.Email)
	assert.Equal(t, &gateway.Phone{AreaCode: "22", Number: "998765432"}, req.Payer.Phone)
	assert.Equal(t, "12345678909", req.Payer.Identification.Number)

	assert.Equal(t, "order-1", req.ExternalReference)
	assert.Equal(t, "approved", req.AutoReturn)
	assert.Equal(t, "https://api.example.com/api/payments/notifications", req.NotificationURL)
	assert.Equal(t, "https://shop.example.com/payment/success?order_id=order-1", req.BackURLs.Success)
	assert.Equal(t, "https://shop.example.com/payment/failure?order_id=order-1", req.BackURLs.Failure)
	assert.Equal(t, "https://shop.example.com/payment/pending?order_id=order-1", req.BackURLs.Pending)

	sum := decimal.Zero
	for _, it := range req.Items {
		p, _ := decimal.NewFromString(it.UnitPrice.String())
		sum = sum.Add(p.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.Equal(t, "170.00", sum.StringFixed(2))
}

func TestBuildPreferenceRejectsTamperedSubtotal(t *testing.T) {
	r := newTestRequester(&fakeGateway{}, nil)
	order := testOrder(t)
	order.Items[0].UnitPrice = decimal.RequireFromString("10.00")

	_, err := r.BuildPreference(order)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "subtotal_amount")
}

func TestIdempotencyKey(t *testing.T) {
	r := newTestRequester(&fakeGateway{}, nil)
	base := time.UnixMilli(1_700_000_400_000)

	first := r.IdempotencyKey("order-1", base.Add(10*time.Second))
	same := r.IdempotencyKey("order-1", base.Add(20*time.Second))
	later := r.IdempotencyKey("order-1", base.Add(20*time.Minute))
	other := r.IdempotencyKey("order-2", base.Add(10*time.Second))

	assert.Equal(t, first, same)
	assert.NotEqual(t, first, later)
	assert.NotEqual(t, first, other)
	assert.Regexp(t, `^order-1-1700000000000-\d+$`, first)
}

func TestRequest(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRequester(gw, nil)
	now := time.UnixMilli(1_700_000_400_000)
	r.now = func() time.Time { return now }

	pref, err := r.Request(context.Background(), testOrder(t))
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://gw/init/order-1", pref.RedirectURL)
	assert.Equal(t, []string{r.IdempotencyKey("order-1", now)}, gw.calls)
}

func TestRequestReusesCachedPreferenceInWindow(t *testing.T) {
	gw := &fakeGateway{}
	c := newFakeCache()
	r := newTestRequester(gw, c)
	now := time.UnixMilli(1_700_000_400_000)
	r.now = func() time.Time { return now }

	first, err := r.Request(context.Background(), testOrder(t))
	require.NoError(t, err)

	now = now.Add(time.Minute)
	second, err := r.Request(context.Background(), testOrder(t))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, gw.calls, 1)
	for _, ttl := range c.ttls {
		assert.Equal(t, 10*time.Minute, ttl)
	}
}

func TestRequestGatewayErrorsPropagate(t *testing.T) {
	gw := &fakeGateway{err: &models.GatewayUnavailableError{Err: errors.New("timeout")}}
	c := newFakeCache()
	r := newTestRequester(gw, c)

	_, err := r.Request(context.Background(), testOrder(t))

	var uerr *models.GatewayUnavailableError
	assert.True(t, errors.As(err, &uerr))
	assert.Empty(t, c.values)
}
