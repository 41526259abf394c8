package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentUpdate(status models.PaymentStatus) models.PaymentUpdate {
	return models.PaymentUpdate{
		PaymentStatus:   status,
		PaymentID:       "123",
		PaymentSnapshot: json.RawMessage(fmt.Sprintf(`{"id":123,"status":%q}`, status)),
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft())
	require.NoError(t, err)

	order, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPendingPayment, order.OrderStatus)

	res, err := s.ApplyPaymentUpdate(ctx, id, paymentUpdate(models.PaymentApproved))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaymentApproved, res.To)

	order, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaymentApproved, order.OrderStatus)
	assert.Equal(t, "123", order.PaymentID)

	_, err = s.ApplyPaymentUpdate(ctx, "missing", paymentUpdate(models.PaymentApproved))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, err := s.Create(ctx, testDraft())
	require.NoError(t, err)

	order, err := s.Get(ctx, id)
	require.NoError(t, err)
	order.OrderStatus = models.OrderPaymentCancelled
	order.Items[0].Quantity = 99

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPendingPayment, again.OrderStatus)
	assert.Equal(t, 3, again.Items[0].Quantity)
}

func TestMemoryStoreConcurrentNotificationsConverge(t *testing.T) {
	statuses := []models.PaymentStatus{
		models.PaymentPending,
		models.PaymentInProcess,
		models.PaymentApproved,
		models.PaymentApproved,
		models.PaymentInProcess,
	}

	for round := 0; round < 20; round++ {
		s := NewMemoryStore()
		ctx := context.Background()
		id, err := s.Create(ctx, testDraft())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, status := range statuses {
			wg.Add(1)
			go func(status models.PaymentStatus) {
				defer wg.Done()
				_, err := s.ApplyPaymentUpdate(ctx, id, paymentUpdate(status))
				assert.NoError(t, err)
			}(status)
		}
		wg.Wait()

		order, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPaymentApproved, order.OrderStatus)
		assert.Equal(t, models.PaymentApproved, order.PaymentStatus)
		assert.JSONEq(t, `{"id":123,"status":"approved"}`, string(order.PaymentSnapshot))
	}
}

func TestMemoryStoreConcurrentTerminalConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, err := s.Create(ctx, testDraft())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]models.UpdateResult, 2)
	for i, status := range []models.PaymentStatus{models.PaymentApproved, models.PaymentCancelled} {
		wg.Add(1)
		go func(i int, status models.PaymentStatus) {
			defer wg.Done()
			res, err := s.ApplyPaymentUpdate(ctx, id, paymentUpdate(status))
			assert.NoError(t, err)
			results[i] = res
		}(i, status)
	}
	wg.Wait()

	order, err := s.Get(ctx, id)
	require.NoError(t, err)

	assert.True(t, order.OrderStatus == models.OrderPaymentApproved || order.OrderStatus == models.OrderPaymentCancelled)
	target := map[models.OrderStatus]models.PaymentStatus{
		models.OrderPaymentApproved:  models.PaymentApproved,
		models.OrderPaymentCancelled: models.PaymentCancelled,
	}
	assert.Equal(t, target[order.OrderStatus], order.PaymentStatus)
	assert.True(t, order.ReviewRequired)
	assert.True(t, results[0].Conflict != results[1].Conflict)
}
