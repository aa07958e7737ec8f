package port

import (
	"context"
	"net/http"

	"github.com/rl1809/food-delivery/internal/core/domain"
)

type PaymentGateway interface {
	// CreateIntent opens a payment attempt for the order and returns the
	// opaque client secret plus the amount computed from the line items.
	CreateIntent(ctx context.Context, order domain.Order) (domain.Intent, error)

	// ConfirmPayment settles an intent. An empty clientSecret fails with
	// domain.ErrInvalidInput; outcome "failed" maps to a failed payment.
	ConfirmPayment(ctx context.Context, order domain.Order, clientSecret, outcome string) (domain.ConfirmResult, error)

	// VerifyWebhook authenticates and parses an asynchronous gateway
	// notification. A signature mismatch fails with
	// domain.ErrInvalidSignature; missing required fields fail with
	// domain.ErrInvalidInput.
	VerifyWebhook(header http.Header, body []byte) (domain.WebhookEvent, error)
}
