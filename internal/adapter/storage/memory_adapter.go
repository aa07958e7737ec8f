package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/port"
)

// MemoryAdapter is the volatile Store implementation. All mutations happen
// under one mutex, so multi-step writes are atomic by construction.
type MemoryAdapter struct {
	mu sync.Mutex

	nextUserID       int64
	nextRestaurantID int64
	nextMenuItemID   int64
	nextPartnerID    int64
	nextOrderID      int64
	nextReceiptID    int64
	nextAssignmentID int64
	nextLocationID   int64

	users           []domain.User
	restaurants     []domain.Restaurant
	menuItems       []domain.MenuItem
	partners        []domain.Partner
	orders          []domain.Order
	receipts        []domain.Receipt
	assignments     []domain.Assignment
	locations       []domain.Location
	processedEvents map[string]struct{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{processedEvents: make(map[string]struct{})}
}

var _ port.Store = (*MemoryAdapter)(nil)

// ----- orders -----

func (m *MemoryAdapter) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextOrderID++
	order.ID = m.nextOrderID
	if order.CreatedAt == 0 {
		order.CreatedAt = time.Now().UnixMilli()
	}
	m.orders = append(m.orders, order)
	return copyOrder(order), nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.findOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	return copyOrder(*o), nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, copyOrder(o))
	}
	return out, nil
}

func (m *MemoryAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.findOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = status
	return copyOrder(*o), nil
}

func (m *MemoryAdapter) UpdateOrderPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.findOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	o.PaymentStatus = status
	return copyOrder(*o), nil
}

func (m *MemoryAdapter) findOrder(id int64) (*domain.Order, error) {
	for i := range m.orders {
		if m.orders[i].ID == id {
			return &m.orders[i], nil
		}
	}
	return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
}

func copyOrder(o domain.Order) domain.Order {
	items := make([]domain.LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// ----- payments -----

func (m *MemoryAdapter) CreateReceipt(ctx context.Context, receipt domain.Receipt) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextReceiptID++
	receipt.ID = m.nextReceiptID
	m.receipts = append(m.receipts, receipt)
	return receipt, nil
}

func (m *MemoryAdapter) HasProcessedEvent(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.processedEvents[eventID]
	return ok, nil
}

func (m *MemoryAdapter) MarkEventProcessed(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processedEvents[eventID] = struct{}{}
	return nil
}

// ReceiptsForOrder is a read helper used by tests and the smoke driver.
func (m *MemoryAdapter) ReceiptsForOrder(orderID int64) []domain.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Receipt
	for _, r := range m.receipts {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out
}

// ----- delivery -----

func (m *MemoryAdapter) CreateAssignment(ctx context.Context, orderID, partnerID int64) (domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixMilli()
	m.nextAssignmentID++
	a := domain.Assignment{
		ID:        m.nextAssignmentID,
		OrderID:   orderID,
		PartnerID: partnerID,
		Status:    domain.AssignmentStatusAssigned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.assignments = append(m.assignments, a)
	return a, nil
}

func (m *MemoryAdapter) GetAssignment(ctx context.Context, id int64) (domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Assignment{}, fmt.Errorf("assignment %d: %w", id, domain.ErrNotFound)
}

func (m *MemoryAdapter) ListAssignmentsForPartner(ctx context.Context, partnerID int64) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Assignment
	for i := len(m.assignments) - 1; i >= 0; i-- {
		if m.assignments[i].PartnerID == partnerID {
			out = append(out, m.assignments[i])
		}
	}
	return out, nil
}

func (m *MemoryAdapter) SetAssignmentStatus(ctx context.Context, id int64, status domain.AssignmentStatus) (domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.assignments {
		if m.assignments[i].ID == id {
			m.assignments[i].Status = status
			m.assignments[i].UpdatedAt = time.Now().UnixMilli()
			return m.assignments[i], nil
		}
	}
	return domain.Assignment{}, fmt.Errorf("assignment %d: %w", id, domain.ErrNotFound)
}

func (m *MemoryAdapter) LatestAssignmentForOrder(ctx context.Context, orderID int64) (domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Assignment
	for i := range m.assignments {
		a := &m.assignments[i]
		if a.OrderID == orderID && (latest == nil || a.ID > latest.ID) {
			latest = a
		}
	}
	if latest == nil {
		return domain.Assignment{}, fmt.Errorf("assignment for order %d: %w", orderID, domain.ErrNotFound)
	}
	return *latest, nil
}

func (m *MemoryAdapter) SaveLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLocationID++
	loc.ID = m.nextLocationID
	if loc.TS == 0 {
		loc.TS = time.Now().UnixMilli()
	}
	m.locations = append(m.locations, loc)
	return loc, nil
}

func (m *MemoryAdapter) LatestLocationForOrder(ctx context.Context, orderID int64) (domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Location
	for i := range m.locations {
		l := &m.locations[i]
		if l.OrderID != orderID {
			continue
		}
		if latest == nil || l.TS > latest.TS || (l.TS == latest.TS && l.ID > latest.ID) {
			latest = l
		}
	}
	if latest == nil {
		return domain.Location{}, fmt.Errorf("location for order %d: %w", orderID, domain.ErrNotFound)
	}
	return *latest, nil
}

func (m *MemoryAdapter) CreatePartner(ctx context.Context, partner domain.Partner) (domain.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if partner.ID == 0 {
		m.nextPartnerID++
		partner.ID = m.nextPartnerID
	} else {
		for _, p := range m.partners {
			if p.ID == partner.ID {
				return domain.Partner{}, fmt.Errorf("partner %d: %w", partner.ID, domain.ErrConflict)
			}
		}
		if partner.ID > m.nextPartnerID {
			m.nextPartnerID = partner.ID
		}
	}
	m.partners = append(m.partners, partner)
	return partner, nil
}

func (m *MemoryAdapter) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Partner, len(m.partners))
	copy(out, m.partners)
	return out, nil
}

// ----- restaurants & menus -----

func (m *MemoryAdapter) CreateRestaurant(ctx context.Context, r domain.Restaurant) (domain.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRestaurantID++
	r.ID = m.nextRestaurantID
	m.restaurants = append(m.restaurants, r)
	return r, nil
}

func (m *MemoryAdapter) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.restaurants {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Restaurant{}, fmt.Errorf("restaurant %d: %w", id, domain.ErrNotFound)
}

func (m *MemoryAdapter) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Restaurant, len(m.restaurants))
	copy(out, m.restaurants)
	return out, nil
}

func (m *MemoryAdapter) CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMenuItemID++
	item.ID = m.nextMenuItemID
	m.menuItems = append(m.menuItems, item)
	return item, nil
}

func (m *MemoryAdapter) ListMenuItems(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.MenuItem
	for _, it := range m.menuItems {
		if it.RestaurantID == restaurantID {
			out = append(out, it)
		}
	}
	return out, nil
}

// ----- users -----

func (m *MemoryAdapter) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.User{}, fmt.Errorf("email %s already exists: %w", u.Email, domain.ErrConflict)
		}
	}
	m.nextUserID++
	u.ID = m.nextUserID
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryAdapter) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (m *MemoryAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.User, len(m.users))
	copy(out, m.users)
	return out, nil
}

// ----- metrics -----

func (m *MemoryAdapter) Metrics(ctx context.Context) (domain.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var revenue int64
	for _, r := range m.receipts {
		revenue += r.AmountCents
	}
	return domain.Metrics{
		UsersTotal:       int64(len(m.users)),
		RestaurantsTotal: int64(len(m.restaurants)),
		OrdersTotal:      int64(len(m.orders)),
		RevenueCents:     revenue,
	}, nil
}

// Seed loads the demo restaurants and menus served by a fresh dev instance.
func (m *MemoryAdapter) Seed(ctx context.Context) error {
	restaurants, err := m.ListRestaurants(ctx)
	if err != nil || len(restaurants) > 0 {
		return err
	}

	r1, err := m.CreateRestaurant(ctx, domain.Restaurant{Name: "Taquería El Sol", Address: "Calle 5 #123, Cuernavaca", Phone: "+52 777 123 4567"})
	if err != nil {
		return err
	}
	r2, err := m.CreateRestaurant(ctx, domain.Restaurant{Name: "Pizzería La Nonna", Address: "Av. Morelos 456, Jiutepec", Phone: "+52 777 987 6543"})
	if err != nil {
		return err
	}

	seedItems := []domain.MenuItem{
		{RestaurantID: r1.ID, Name: "Taco al Pastor", PriceCents: 2000},
		{RestaurantID: r1.ID, Name: "Quesadilla de Queso", PriceCents: 1500},
		{RestaurantID: r1.ID, Name: "Agua de Horchata", PriceCents: 1200},
		{RestaurantID: r2.ID, Name: "Pizza Margarita (Individual)", PriceCents: 9500},
		{RestaurantID: r2.ID, Name: "Refresco", PriceCents: 1800},
	}
	for _, it := range seedItems {
		if _, err := m.CreateMenuItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}
