package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/models"
	stan "github.com/nats-io/stan.go"
	"go.uber.org/zap"
)

// Publisher announces order status changes to fulfillment.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
	Close() error
}

// conn is the part of stan.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Close() error
}

type StanPublisher struct {
	conn    conn
	subject string
	logger  *zap.SugaredLogger
}

func NewStanPublisher(cfg *config.Config, logger *zap.SugaredLogger) (*StanPublisher, error) {
	clientID := cfg.StanClientID
	if clientID == "" {
		clientID = "storefront-" + uuid.NewString()[:8]
	}

	sc, err := stan.Connect(cfg.StanClusterID, clientID, stan.NatsURL(cfg.NatsURL))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	logger.Infow("connected to nats streaming", "cluster", cfg.StanClusterID, "client", clientID, "subject", cfg.StanSubject)

	return newStanPublisher(sc, cfg.StanSubject, logger), nil
}

func newStanPublisher(c conn, subject string, logger *zap.SugaredLogger) *StanPublisher {
	return &StanPublisher{conn: c, subject: subject, logger: logger}
}

func (p *StanPublisher) Publish(_ context.Context, event models.OrderEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if err = p.conn.Publish(p.subject, b); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	p.logger.Debugw("order event published", "order_id", event.OrderID, "to", event.To, "bytes", len(b))
	return nil
}

func (p *StanPublisher) Close() error {
	return p.conn.Close()
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
