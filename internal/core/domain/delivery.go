package domain

type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "Assigned"
	AssignmentStatusAccepted  AssignmentStatus = "Accepted"
	AssignmentStatusPickedUp  AssignmentStatus = "PickedUp"
	AssignmentStatusDelivered AssignmentStatus = "Delivered"
)

// Assignment links one order to one delivery partner. The latest assignment
// for an order (highest id) is the authoritative one.
type Assignment struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"orderId"`
	PartnerID int64            `json:"partnerId"`
	Status    AssignmentStatus `json:"status"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
}

// Location is one sample of an append-only partner location time series.
// OrderID is zero when the ping is not scoped to an order.
type Location struct {
	ID        int64   `json:"id"`
	PartnerID int64   `json:"partnerId"`
	OrderID   int64   `json:"orderId,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	TS        int64   `json:"ts"`
}

type Partner struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	VehicleType string `json:"vehicleType"`
}
