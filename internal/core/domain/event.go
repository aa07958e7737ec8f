package domain

import "encoding/json"

// Notification event types fanned out to admin and partner subscribers.
const (
	EventNewOrder           = "new_order"
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentUpdated     = "payment_updated"
	EventPaymentDuplicate   = "payment_duplicate"
	EventDeliveryAssigned   = "delivery_assigned"
	EventDeliveryAccepted   = "delivery_accepted"
	EventDeliveryStatus     = "delivery_status"
	EventLocationUpdate     = "location_update"
)

// Event is a transient notification describing a state change. It is never
// persisted; it only exists on its way to live subscribers.
type Event struct {
	Type         string
	TS           int64
	Severity     string
	OrderID      int64
	RestaurantID int64
	PartnerID    int64
	Message      string
	Status       string
	// Extra carries additional wire fields; they pass through unchanged.
	Extra map[string]any
}

// MarshalJSON flattens the event into a single JSON object. Extra fields are
// merged in first so the typed fields always win on key collisions.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+8)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["type"] = e.Type
	m["ts"] = e.TS
	severity := e.Severity
	if severity == "" {
		severity = "info"
	}
	m["severity"] = severity
	if e.OrderID != 0 {
		m["orderId"] = e.OrderID
	}
	if e.RestaurantID != 0 {
		m["restaurantId"] = e.RestaurantID
	}
	if e.PartnerID != 0 {
		m["partnerId"] = e.PartnerID
	}
	if e.Message != "" {
		m["message"] = e.Message
	}
	if e.Status != "" {
		m["status"] = e.Status
	}
	return json.Marshal(m)
}
