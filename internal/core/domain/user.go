package domain

const (
	RoleClient   = "client"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
	RoleDelivery = "delivery"
)

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type Restaurant struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type MenuItem struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurantId"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"priceCents"`
}

// Metrics is the admin dashboard summary.
type Metrics struct {
	UsersTotal       int64 `json:"usersTotal"`
	RestaurantsTotal int64 `json:"restaurantsTotal"`
	OrdersTotal      int64 `json:"ordersTotal"`
	RevenueCents     int64 `json:"revenueCents"`
}
