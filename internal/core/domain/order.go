package domain

type OrderStatus string

const (
	OrderStatusSubmitted      OrderStatus = "Submitted"
	OrderStatusAccepted       OrderStatus = "Accepted"
	OrderStatusPreparing      OrderStatus = "Preparing"
	OrderStatusReadyForPickup OrderStatus = "ReadyForPickup"
)

// orderTransitions is the allow-list of forward transitions; anything not
// listed for the current status is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusSubmitted:      {OrderStatusAccepted},
	OrderStatusAccepted:       {OrderStatusPreparing},
	OrderStatusPreparing:      {OrderStatusReadyForPickup},
	OrderStatusReadyForPickup: {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "Unpaid"
	PaymentStatusSucceeded PaymentStatus = "Succeeded"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// LineItem is one ordered menu entry with a price snapshot taken at
// order-creation time.
type LineItem struct {
	ItemID     int64  `json:"itemId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Qty        int64  `json:"qty"`
}

type Order struct {
	ID            int64         `json:"id"`
	RestaurantID  int64         `json:"restaurantId"`
	UserID        int64         `json:"userId,omitempty"`
	Items         []LineItem    `json:"items"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	CreatedAt     int64         `json:"createdAt"`
}

// AmountCents is the authoritative order total, derived from the line items
// rather than trusted from any client-supplied amount.
func (o Order) AmountCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.PriceCents * it.Qty
	}
	return total
}
