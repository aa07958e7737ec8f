package port

import (
	"context"

	"github.com/rl1809/food-delivery/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists a new order together with its line items.
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// GetOrder returns domain.ErrNotFound when the order does not exist.
	GetOrder(ctx context.Context, id int64) (domain.Order, error)

	ListOrders(ctx context.Context) ([]domain.Order, error)

	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)

	UpdateOrderPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Order, error)
}

type PaymentRepository interface {
	// CreateReceipt persists an immutable payment receipt.
	CreateReceipt(ctx context.Context, receipt domain.Receipt) (domain.Receipt, error)

	EventDedup
}

// EventDedup is the processed-payment-event set behind webhook idempotency.
// Membership means the external event id has already been applied.
type EventDedup interface {
	HasProcessedEvent(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}

type DeliveryRepository interface {
	CreateAssignment(ctx context.Context, orderID, partnerID int64) (domain.Assignment, error)

	GetAssignment(ctx context.Context, id int64) (domain.Assignment, error)

	ListAssignmentsForPartner(ctx context.Context, partnerID int64) ([]domain.Assignment, error)

	SetAssignmentStatus(ctx context.Context, id int64, status domain.AssignmentStatus) (domain.Assignment, error)

	// LatestAssignmentForOrder returns the highest-id assignment for the
	// order, or domain.ErrNotFound when none exists.
	LatestAssignmentForOrder(ctx context.Context, orderID int64) (domain.Assignment, error)

	SaveLocation(ctx context.Context, loc domain.Location) (domain.Location, error)

	// LatestLocationForOrder returns the most recent sample scoped to the
	// order, or domain.ErrNotFound when none exists.
	LatestLocationForOrder(ctx context.Context, orderID int64) (domain.Location, error)

	// CreatePartner honors a non-zero id (delivery-role users keep their
	// user id) and returns domain.ErrConflict when that id is taken.
	CreatePartner(ctx context.Context, partner domain.Partner) (domain.Partner, error)

	ListPartners(ctx context.Context) ([]domain.Partner, error)
}

type RestaurantRepository interface {
	CreateRestaurant(ctx context.Context, r domain.Restaurant) (domain.Restaurant, error)
	GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]domain.Restaurant, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)
	ListMenuItems(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error)
}

type UserRepository interface {
	// CreateUser returns domain.ErrConflict when the email is already
	// registered (case-insensitive).
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Store is the persistence gateway. One concrete implementation (in-memory
// or MySQL) is selected at startup; the core only sees this interface.
type Store interface {
	OrderRepository
	PaymentRepository
	DeliveryRepository
	RestaurantRepository
	UserRepository

	Metrics(ctx context.Context) (domain.Metrics, error)
}
