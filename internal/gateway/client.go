package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/internal/metrics"
	"github.com/jayjaytrn/storefront-checkout/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	OperationCreatePreference = "create_preference"
	OperationGetPayment       = "get_payment"

	maxResponseBytes = 1 << 20
)

var tracer = otel.Tracer("github.com/jayjaytrn/storefront-checkout/internal/gateway")

// Client talks to a Mercado Pago compatible REST API with a single access token.
type Client struct {
	baseURL    string
	token      string
	sandbox    bool
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
}

func NewClient(cfg *config.Config, token string, m *metrics.Metrics, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GatewayBaseURL, "/"),
		token:      token,
		sandbox:    cfg.GatewaySandbox,
		httpClient: &http.Client{Timeout: cfg.GatewayTimeout},
		metrics:    m,
		logger:     logger,
	}
}

// CreatePreference registers a checkout preference. Requests carrying the
// same idempotency key are deduplicated by the gateway.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest, idempotencyKey string) (*models.Preference, error) {
	ctx, span := tracer.Start(ctx, "gateway.CreatePreference", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.ExternalReference))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference: %w", err)
	}

	headers := http.Header{}
	headers.Set("X-Idempotency-Key", idempotencyKey)

	raw, err := c.do(ctx, OperationCreatePreference, http.MethodPost, "/checkout/preferences", body, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp preferenceResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to decode preference response: %w", err)}
	}

	redirect := resp.InitPoint
	if c.sandbox && resp.SandboxInitPoint != "" {
		redirect = resp.SandboxInitPoint
	}
	if resp.ID == "" || redirect == "" {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("preference response without id or redirect url")}
	}

	return &models.Preference{ID: resp.ID, RedirectURL: redirect}, nil
}

// GetPayment fetches the authoritative payment object.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "gateway.GetPayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	raw, err := c.do(ctx, OperationGetPayment, http.MethodGet, "/v1/payments/"+paymentID, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var resp paymentResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to decode payment %s: %w", paymentID, err)}
	}

	id := resp.ID.String()
	if id == "" {
		id = paymentID
	}

	return &models.Payment{
		ID:                id,
		Status:            models.PaymentStatus(resp.Status),
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		Raw:               json.RawMessage(raw),
	}, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, headers http.Header) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GatewayRequest(operation, "unavailable", time.Since(start))
		c.logger.Warnw("gateway request failed", "operation", operation, "error", err)
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.GatewayRequest(operation, "unavailable", elapsed)
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		c.metrics.GatewayRequest(operation, "unavailable", elapsed)
		c.logger.Warnw("gateway unavailable", "operation", operation, "status", resp.StatusCode)
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		c.metrics.GatewayRequest(operation, "rejected", elapsed)
		gerr := decodeAPIError(resp.StatusCode, raw)
		c.logger.Infow("gateway rejected request", "operation", operation, "status", resp.StatusCode, "error", gerr.Error())
		return nil, gerr
	}

	c.metrics.GatewayRequest(operation, "ok", elapsed)
	return raw, nil
}

func decodeAPIError(status int, raw []byte) *models.GatewayValidationError {
	gerr := &models.GatewayValidationError{StatusCode: status, Message: http.StatusText(status)}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			gerr.Message = s
		}
		return gerr
	}

	if apiErr.Message != "" {
		gerr.Message = apiErr.Message
	} else if apiErr.Error != "" {
		gerr.Message = apiErr.Error
	}
	for _, c := range apiErr.Cause {
		description := c.Description
		if description == "" {
			description = c.Message
		}
		gerr.Causes = append(gerr.Causes, models.GatewayCause{Code: rawCode(c.Code), Description: description})
	}
	return gerr
}

// rawCode accepts codes sent either as JSON numbers or strings.
func rawCode(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}
