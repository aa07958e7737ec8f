package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/port"
)

// PaymentService mediates between the payment gateway and order state. The
// dedup set makes webhook handling idempotent per external event id.
type PaymentService struct {
	store   port.Store
	gateway port.PaymentGateway
	dedup   port.EventDedup
	bus     *eventbus.Bus
}

// NewPaymentService wires the service. A nil dedup falls back to the store's
// own processed-event set.
func NewPaymentService(store port.Store, gateway port.PaymentGateway, dedup port.EventDedup, bus *eventbus.Bus) *PaymentService {
	if dedup == nil {
		dedup = store
	}
	return &PaymentService{store: store, gateway: gateway, dedup: dedup, bus: bus}
}

// CreateIntent opens a payment attempt. The amount is always recomputed from
// the order's line items.
func (s *PaymentService) CreateIntent(ctx context.Context, orderID int64) (domain.Intent, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Intent{}, err
	}
	return s.gateway.CreateIntent(ctx, order)
}

// Confirm settles the intent, records the payment status on the order and
// persists the receipt.
func (s *PaymentService) Confirm(ctx context.Context, orderID int64, clientSecret, outcome string) (domain.Order, domain.Receipt, error) {
	if clientSecret == "" {
		return domain.Order{}, domain.Receipt{}, fmt.Errorf("clientSecret required: %w", domain.ErrInvalidInput)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, domain.Receipt{}, err
	}

	result, err := s.gateway.ConfirmPayment(ctx, order, clientSecret, outcome)
	if err != nil {
		return domain.Order{}, domain.Receipt{}, err
	}

	updated, err := s.store.UpdateOrderPaymentStatus(ctx, orderID, result.Status)
	if err != nil {
		return domain.Order{}, domain.Receipt{}, err
	}
	receipt, err := s.store.CreateReceipt(ctx, result.Receipt)
	if err != nil {
		return domain.Order{}, domain.Receipt{}, err
	}

	s.bus.PublishAdmin(domain.Event{
		Type:    domain.EventPaymentUpdated,
		OrderID: updated.ID,
		Status:  string(updated.PaymentStatus),
		Message: fmt.Sprintf("Payment for order #%d: %s", updated.ID, updated.PaymentStatus),
	})
	return updated, receipt, nil
}

// WebhookResult is the acknowledgement returned to the gateway.
type WebhookResult struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// HandleWebhook verifies, deduplicates and applies an asynchronous payment
// event. Redelivery of an already-processed event id resolves as a
// successful duplicate acknowledgement, never as an error. The event is
// marked processed before the handler returns success, so retried
// deliveries are always recognized.
func (s *PaymentService) HandleWebhook(ctx context.Context, header http.Header, body []byte) (WebhookResult, error) {
	evt, err := s.gateway.VerifyWebhook(header, body)
	if err != nil {
		return WebhookResult{}, err
	}

	seen, err := s.dedup.HasProcessedEvent(ctx, evt.EventID)
	if err != nil {
		return WebhookResult{}, err
	}
	if seen {
		s.bus.PublishAdmin(domain.Event{
			Type:    domain.EventPaymentDuplicate,
			OrderID: evt.OrderID,
			Message: fmt.Sprintf("Duplicate payment event %s ignored", evt.EventID),
		})
		return WebhookResult{OK: true, Duplicate: true}, nil
	}

	if evt.Status != "" {
		if _, err := s.store.UpdateOrderPaymentStatus(ctx, evt.OrderID, domain.PaymentStatus(evt.Status)); err != nil {
			return WebhookResult{}, err
		}
	}
	if err := s.dedup.MarkEventProcessed(ctx, evt.EventID); err != nil {
		return WebhookResult{}, err
	}

	s.bus.PublishAdmin(domain.Event{
		Type:    domain.EventPaymentUpdated,
		OrderID: evt.OrderID,
		Status:  evt.Status,
		Message: fmt.Sprintf("Payment event %s for order #%d", evt.Event, evt.OrderID),
	})
	return WebhookResult{OK: true}, nil
}
