package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/port"
)

const (
	// SignatureHeader carries the shared-secret webhook signature.
	SignatureHeader = "X-Mock-Signature"

	defaultSecret = "dev_secret"
	provider      = "mock"
	currency      = "USD"
)

// MockGateway simulates an external payment provider: intents are minted
// locally, confirmation maps the requested outcome to a payment status, and
// webhooks are authenticated by a shared-secret header.
type MockGateway struct {
	secret string
}

func NewMockGateway(secret string) *MockGateway {
	if secret == "" {
		secret = defaultSecret
	}
	return &MockGateway{secret: secret}
}

var _ port.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) CreateIntent(ctx context.Context, order domain.Order) (domain.Intent, error) {
	return domain.Intent{
		ClientSecret: "mock_secret_" + uuid.NewString(),
		AmountCents:  order.AmountCents(),
		Currency:     currency,
	}, nil
}

func (g *MockGateway) ConfirmPayment(ctx context.Context, order domain.Order, clientSecret, outcome string) (domain.ConfirmResult, error) {
	if clientSecret == "" {
		return domain.ConfirmResult{}, fmt.Errorf("clientSecret required: %w", domain.ErrInvalidInput)
	}

	status := domain.PaymentStatusSucceeded
	if outcome == "failed" {
		status = domain.PaymentStatusFailed
	}

	amount := order.AmountCents()
	raw, err := json.Marshal(map[string]any{
		"provider":     provider,
		"orderId":      order.ID,
		"amountCents":  amount,
		"currency":     currency,
		"clientSecret": clientSecret,
		"outcome":      status,
		"at":           time.Now().UnixMilli(),
	})
	if err != nil {
		return domain.ConfirmResult{}, fmt.Errorf("marshal receipt: %w", err)
	}

	return domain.ConfirmResult{
		Provider: provider,
		Status:   status,
		Receipt: domain.Receipt{
			OrderID:     order.ID,
			Provider:    provider,
			AmountCents: amount,
			Currency:    currency,
			Raw:         raw,
		},
	}, nil
}

// VerifyWebhook checks the signature before looking at the payload, so a bad
// signature reveals nothing about referenced orders or events. Field names
// are accepted in both camelCase and snake_case.
func (g *MockGateway) VerifyWebhook(header http.Header, body []byte) (domain.WebhookEvent, error) {
	if header.Get(SignatureHeader) != g.secret {
		return domain.WebhookEvent{}, domain.ErrInvalidSignature
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("malformed webhook body: %w", domain.ErrInvalidInput)
	}

	evt := domain.WebhookEvent{
		EventID: stringField(payload, "eventId", "event_id"),
		OrderID: intField(payload, "orderId", "order_id"),
		Event:   stringField(payload, "event"),
		Status:  stringField(payload, "status"),
	}
	if evt.EventID == "" || evt.OrderID == 0 || evt.Event == "" {
		return domain.WebhookEvent{}, fmt.Errorf("eventId, orderId, and event required: %w", domain.ErrInvalidInput)
	}
	return evt, nil
}

func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(payload map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case float64:
			return int64(v)
		case string:
			var n int64
			if _, err := fmt.Sscan(v, &n); err == nil {
				return n
			}
		}
	}
	return 0
}
