package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	mockdb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockdb.Close() })

	m := newManager(mockdb)
	m.now = func() time.Time { return fixedNow }
	m.newID = func() string { return "order-1" }
	return m, mock
}

func testDraft() models.OrderDraft {
	return models.OrderDraft{
		Customer: models.Customer{
			Name:  "Maria Silva",
			Email: "maria@example.com",
			Phone: "22998765432",
			TaxID: "12345678909",
			Address: models.Address{
				PostalCode: "28979440",
				Street:     "Rua das Flores",
				Number:     "42",
				District:   "Centro",
				City:       "Araruama",
				State:      "RJ",
			},
		},
		Items: []models.DraftItem{
			{ProductID: "p1", Name: "Mug", Quantity: 3, UnitPrice: decimal.RequireFromString("50.00")},
		},
		Shipping: &models.Shipping{CarrierName: "PAC", Price: decimal.RequireFromString("20.00"), EstimatedDays: 5},
	}
}

func storedDocument(t *testing.T, mutate func(o *models.Order)) []byte {
	t.Helper()
	order, err := models.NewOrder("order-1", testDraft(), fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	if mutate != nil {
		mutate(order)
	}
	document, err := json.Marshal(order)
	require.NoError(t, err)
	return document
}

func TestCreate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		m, mock := newMockManager(t)

		mock.ExpectExec(`INSERT INTO orders \(id, order_status, payment_status, document, created_at, updated_at\)`).
			WithArgs("order-1", models.OrderPendingPayment, models.PaymentPending, sqlmock.AnyArg(), fixedNow, fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))

		id, err := m.Create(context.Background(), testDraft())
		require.NoError(t, err)
		assert.Equal(t, "order-1", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ValidationErrorSkipsWrite", func(t *testing.T) {
		m, mock := newMockManager(t)
		draft := testDraft()
		draft.Shipping = nil

		_, err := m.Create(context.Background(), draft)

		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StoreUnavailable", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectExec(`INSERT INTO orders`).WillReturnError(errors.New("connection refused"))

		_, err := m.Create(context.Background(), testDraft())

		var serr *models.StoreUnavailableError
		assert.True(t, errors.As(err, &serr))
	})
}

func TestGet(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1`).
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(storedDocument(t, nil)))

		order, err := m.Get(context.Background(), "order-1")
		require.NoError(t, err)
		assert.Equal(t, "order-1", order.ID)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("170.00")))
		assert.Equal(t, models.OrderPendingPayment, order.OrderStatus)
	})

	t.Run("NotFound", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := m.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestApplyPaymentUpdate(t *testing.T) {
	approved := models.PaymentUpdate{
		PaymentStatus:   models.PaymentApproved,
		PaymentID:       "123",
		PaymentSnapshot: json.RawMessage(`{"id":123,"status":"approved","external_reference":"order-1"}`),
	}

	t.Run("Transition", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(storedDocument(t, nil)))
		mock.ExpectExec(`UPDATE orders SET document = \$2, order_status = \$3, payment_status = \$4, payment_id = \$5, updated_at = \$6 WHERE id = \$1`).
			WithArgs("order-1", sqlmock.AnyArg(), models.OrderPaymentApproved, models.PaymentApproved, "123", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := m.ApplyPaymentUpdate(context.Background(), "order-1", approved)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, models.OrderPendingPayment, res.From)
		assert.Equal(t, models.OrderPaymentApproved, res.To)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateSkipsWrite", func(t *testing.T) {
		m, mock := newMockManager(t)
		document := storedDocument(t, func(o *models.Order) {
			o.OrderStatus = models.OrderPaymentApproved
			o.PaymentStatus = models.PaymentApproved
			o.PaymentID = "123"
			o.PaymentSnapshot = json.RawMessage(`{"external_reference": "order-1", "id": 123, "status": "approved"}`)
		})
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(document))
		mock.ExpectRollback()

		res, err := m.ApplyPaymentUpdate(context.Background(), "order-1", approved)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleDoesNotRegress", func(t *testing.T) {
		m, mock := newMockManager(t)
		document := storedDocument(t, func(o *models.Order) {
			o.OrderStatus = models.OrderPaymentApproved
			o.PaymentStatus = models.PaymentApproved
			o.PaymentID = "123"
		})
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(document))
		mock.ExpectRollback()

		res, err := m.ApplyPaymentUpdate(context.Background(), "order-1", models.PaymentUpdate{
			PaymentStatus: models.PaymentInProcess,
			PaymentID:     "123",
		})
		require.NoError(t, err)
		assert.Equal(t, models.OrderPaymentApproved, res.To)
		assert.False(t, res.Changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT document FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := m.ApplyPaymentUpdate(context.Background(), "missing", approved)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

		_, err := m.ApplyPaymentUpdate(context.Background(), "order-1", approved)

		var serr *models.StoreUnavailableError
		assert.True(t, errors.As(err, &serr))
	})
}

func TestRecordNotification(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectExec(`INSERT INTO payment_notifications \(payment_id, order_id, payment_status, outcome, received_at\)`).
		WithArgs("123", nil, nil, models.OutcomeNoReference, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := m.RecordNotification(context.Background(), models.NotificationRecord{
		PaymentID:  "123",
		Outcome:    models.OutcomeNoReference,
		ReceivedAt: fixedNow,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
