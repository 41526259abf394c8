package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpPaymentNotificationsTable, DownPaymentNotificationsTable)
}

func UpPaymentNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE payment_notifications
(
    id BIGSERIAL PRIMARY KEY,
    payment_id VARCHAR(64) NOT NULL,
    order_id VARCHAR(64),
    payment_status VARCHAR(32),
    outcome VARCHAR(32) NOT NULL,
    received_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
);`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_payment_notifications_order_id ON payment_notifications(order_id);`)
	return err
}

func DownPaymentNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE payment_notifications;")
	return err
}
