package domain

import "encoding/json"

// Receipt is created once per successful confirm/webhook and never mutated.
type Receipt struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	Provider    string          `json:"provider"`
	AmountCents int64           `json:"amountCents"`
	Currency    string          `json:"currency"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Intent is the opaque handle for an in-progress payment attempt.
type Intent struct {
	ClientSecret string `json:"clientSecret"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
}

// ConfirmResult is what the payment gateway reports back on confirmation.
type ConfirmResult struct {
	Provider string
	Status   PaymentStatus
	Receipt  Receipt
}

// WebhookEvent is a verified, parsed asynchronous gateway notification.
type WebhookEvent struct {
	EventID string
	OrderID int64
	Event   string
	Status  string
}
