package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/rl1809/food-delivery/internal/adapter/payment"
	"github.com/rl1809/food-delivery/internal/adapter/storage"
	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/port"
)

const testSecret = "test_secret"

func newPaymentFixture(t *testing.T) (*PaymentService, *storage.MemoryAdapter, *eventbus.Bus, domain.Order) {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryAdapter()
	bus := eventbus.New()
	gateway := payment.NewMockGateway(testSecret)
	svc := NewPaymentService(store, gateway, nil, bus)

	restaurant, err := store.CreateRestaurant(ctx, domain.Restaurant{Name: "Test Kitchen"})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	order, err := store.CreateOrder(ctx, domain.Order{
		RestaurantID:  restaurant.ID,
		Items:         []domain.LineItem{{Name: "Taco", PriceCents: 2000, Qty: 1}, {Name: "Agua", PriceCents: 1200, Qty: 2}},
		Status:        domain.OrderStatusSubmitted,
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return svc, store, bus, order
}

func signedHeader() http.Header {
	h := http.Header{}
	h.Set(payment.SignatureHeader, testSecret)
	return h
}

func TestCreateIntent_ComputesAmount(t *testing.T) {
	svc, _, _, order := newPaymentFixture(t)

	intent, err := svc.CreateIntent(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intent.AmountCents != 4400 {
		t.Errorf("expected amount 4400, got %d", intent.AmountCents)
	}
	if !strings.HasPrefix(intent.ClientSecret, "mock_secret_") {
		t.Errorf("unexpected client secret %q", intent.ClientSecret)
	}
}

func TestCreateIntent_OrderNotFound(t *testing.T) {
	svc, _, _, _ := newPaymentFixture(t)

	_, err := svc.CreateIntent(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirm_Succeeded(t *testing.T) {
	svc, store, bus, order := newPaymentFixture(t)
	ctx := context.Background()

	ch, off := bus.SubscribeAdmin()
	defer off()

	intent, err := svc.CreateIntent(ctx, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	updated, receipt, err := svc.Confirm(ctx, order.ID, intent.ClientSecret, "succeeded")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusSucceeded {
		t.Errorf("expected Succeeded, got %s", updated.PaymentStatus)
	}
	if receipt.AmountCents != 4400 {
		t.Errorf("expected receipt amount 4400, got %d", receipt.AmountCents)
	}

	receipts := store.ReceiptsForOrder(order.ID)
	if len(receipts) != 1 {
		t.Fatalf("expected exactly one receipt, got %d", len(receipts))
	}

	evt := waitEvent(t, ch, domain.EventPaymentUpdated)
	if evt.Status != string(domain.PaymentStatusSucceeded) {
		t.Errorf("expected Succeeded on event, got %q", evt.Status)
	}
}

func TestConfirm_Failed(t *testing.T) {
	svc, _, _, order := newPaymentFixture(t)
	ctx := context.Background()

	intent, err := svc.CreateIntent(ctx, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	updated, _, err := svc.Confirm(ctx, order.ID, intent.ClientSecret, "failed")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("expected Failed, got %s", updated.PaymentStatus)
	}
}

func TestConfirm_MissingSecret(t *testing.T) {
	svc, _, _, order := newPaymentFixture(t)

	_, _, err := svc.Confirm(context.Background(), order.ID, "", "succeeded")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHandleWebhook_AppliesThenDeduplicates(t *testing.T) {
	svc, store, _, order := newPaymentFixture(t)
	ctx := context.Background()

	body := []byte(fmt.Sprintf(`{"eventId":"evt-1","orderId":%d,"event":"payment.updated","status":"Succeeded"}`, order.ID))

	first, err := svc.HandleWebhook(ctx, signedHeader(), body)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if !first.OK || first.Duplicate {
		t.Errorf("expected non-duplicate ack, got %+v", first)
	}

	got, err := store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.PaymentStatus != domain.PaymentStatusSucceeded {
		t.Errorf("expected Succeeded, got %s", got.PaymentStatus)
	}

	// Flip the status under the same event id; the redelivery must not
	// re-apply it.
	body2 := []byte(fmt.Sprintf(`{"eventId":"evt-1","orderId":%d,"event":"payment.updated","status":"Failed"}`, order.ID))
	second, err := svc.HandleWebhook(ctx, signedHeader(), body2)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if !second.OK || !second.Duplicate {
		t.Errorf("expected duplicate ack, got %+v", second)
	}

	got, err = store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.PaymentStatus != domain.PaymentStatusSucceeded {
		t.Errorf("duplicate delivery changed payment status to %s", got.PaymentStatus)
	}
}

func TestHandleWebhook_SnakeCaseFields(t *testing.T) {
	svc, store, _, order := newPaymentFixture(t)
	ctx := context.Background()

	body := []byte(fmt.Sprintf(`{"event_id":"evt-snake","order_id":%d,"event":"payment.updated","status":"Failed"}`, order.ID))
	result, err := svc.HandleWebhook(ctx, signedHeader(), body)
	if err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if !result.OK {
		t.Errorf("expected ok ack, got %+v", result)
	}

	got, err := store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("expected Failed, got %s", got.PaymentStatus)
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	svc, _, _, order := newPaymentFixture(t)
	ctx := context.Background()

	h := http.Header{}
	h.Set(payment.SignatureHeader, "wrong")
	body := []byte(fmt.Sprintf(`{"eventId":"evt-sig","orderId":%d,"event":"payment.updated","status":"Succeeded"}`, order.ID))

	_, err := svc.HandleWebhook(ctx, h, body)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// The rejected event id must not be marked processed: the same body
	// with a valid signature still applies.
	result, err := svc.HandleWebhook(ctx, signedHeader(), body)
	if err != nil {
		t.Fatalf("valid redelivery failed: %v", err)
	}
	if result.Duplicate {
		t.Error("rejected delivery should not have marked the event processed")
	}
}

func TestHandleWebhook_MissingFields(t *testing.T) {
	svc, _, _, order := newPaymentFixture(t)

	for _, body := range []string{
		`{"orderId":1,"event":"payment.updated"}`,
		`{"eventId":"evt-x","event":"payment.updated","orderId":0}`,
		fmt.Sprintf(`{"eventId":"evt-y","orderId":%d}`, order.ID),
		`not json`,
	} {
		_, err := svc.HandleWebhook(context.Background(), signedHeader(), []byte(body))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("body %q: expected ErrInvalidInput, got %v", body, err)
		}
	}
}

func TestHandleWebhook_UnknownOrder(t *testing.T) {
	svc, _, _, _ := newPaymentFixture(t)

	body := []byte(`{"eventId":"evt-missing","orderId":999,"event":"payment.updated","status":"Succeeded"}`)
	_, err := svc.HandleWebhook(context.Background(), signedHeader(), body)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// failing dedup to exercise propagation of persistence errors
type failingDedup struct {
	port.EventDedup
	err error
}

func (f failingDedup) MarkEventProcessed(ctx context.Context, eventID string) error { return f.err }

func TestHandleWebhook_DedupFailurePropagates(t *testing.T) {
	store := storage.NewMemoryAdapter()
	bus := eventbus.New()
	gateway := payment.NewMockGateway(testSecret)
	boom := errors.New("dedup down")
	svc := NewPaymentService(store, gateway, failingDedup{EventDedup: store, err: boom}, bus)

	ctx := context.Background()
	restaurant, _ := store.CreateRestaurant(ctx, domain.Restaurant{Name: "X"})
	order, _ := store.CreateOrder(ctx, domain.Order{RestaurantID: restaurant.ID, Items: []domain.LineItem{{PriceCents: 100, Qty: 1}}, Status: domain.OrderStatusSubmitted, PaymentStatus: domain.PaymentStatusUnpaid})

	body := []byte(fmt.Sprintf(`{"eventId":"evt-err","orderId":%d,"event":"payment.updated","status":"Succeeded"}`, order.ID))
	_, err := svc.HandleWebhook(ctx, signedHeader(), body)
	if !errors.Is(err, boom) {
		t.Errorf("expected dedup error to propagate, got %v", err)
	}
}
