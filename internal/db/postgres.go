package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jayjaytrn/storefront-checkout/config"
	_ "github.com/jayjaytrn/storefront-checkout/internal/db/migrations"
	"github.com/jayjaytrn/storefront-checkout/internal/lifecycle"
	"github.com/jayjaytrn/storefront-checkout/models"
	"github.com/pressly/goose/v3"
)

type Manager struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = goose.UpContext(ctx, db, "./internal/db/migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newManager(db), nil
}

func newManager(db *sql.DB) *Manager {
	return &Manager{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (m *Manager) Create(ctx context.Context, draft models.OrderDraft) (string, error) {
	order, err := models.NewOrder(m.newID(), draft, m.now())
	if err != nil {
		return "", err
	}

	document, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
        INSERT INTO orders (id, order_status, payment_status, document, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, order.ID, order.OrderStatus, order.PaymentStatus, document, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return "", &models.StoreUnavailableError{Err: fmt.Errorf("failed to insert order: %w", err)}
	}

	return order.ID, nil
}

func (m *Manager) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var document []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT document
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, &models.StoreUnavailableError{Err: fmt.Errorf("failed to get order: %w", err)}
	}

	return decodeOrder(document)
}

func (m *Manager) ApplyPaymentUpdate(ctx context.Context, orderID string, update models.PaymentUpdate) (models.UpdateResult, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UpdateResult{}, &models.StoreUnavailableError{Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	// Row lock: a concurrent notification for the same order waits here and
	// then sees this transaction's committed status.
	var document []byte
	err = tx.QueryRowContext(ctx, `
		SELECT document
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UpdateResult{}, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return models.UpdateResult{}, &models.StoreUnavailableError{Err: fmt.Errorf("failed to lock order: %w", err)}
	}

	order, err := decodeOrder(document)
	if err != nil {
		return models.UpdateResult{}, err
	}

	result := lifecycle.Apply(order, update, m.now().UTC())
	if !result.Changed {
		return result, nil
	}

	document, err = json.Marshal(order)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("failed to encode order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET document = $2, order_status = $3, payment_status = $4, payment_id = $5, updated_at = $6
		WHERE id = $1
	`, order.ID, document, order.OrderStatus, order.PaymentStatus, nullableString(order.PaymentID), order.UpdatedAt)
	if err != nil {
		return models.UpdateResult{}, &models.StoreUnavailableError{Err: fmt.Errorf("failed to update order: %w", err)}
	}

	if err = tx.Commit(); err != nil {
		return models.UpdateResult{}, &models.StoreUnavailableError{Err: fmt.Errorf("failed to commit order update: %w", err)}
	}

	return result, nil
}

func (m *Manager) RecordNotification(ctx context.Context, record models.NotificationRecord) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO payment_notifications (payment_id, order_id, payment_status, outcome, received_at)
        VALUES ($1, $2, $3, $4, $5)
    `, record.PaymentID, nullableString(record.OrderID), nullableString(string(record.PaymentStatus)), record.Outcome, record.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment notification: %w", err)
	}

	return nil
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func decodeOrder(document []byte) (*models.Order, error) {
	var order models.Order
	if err := json.Unmarshal(document, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order document: %w", err)
	}
	return &order, nil
}

// nullableString stores NULL instead of an empty string.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Database = (*Manager)(nil)
