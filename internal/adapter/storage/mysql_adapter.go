package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/port"
)

const mysqlDupEntry = 1062

// MySQLAdapter is the relational Store implementation. Multi-statement
// mutations run inside a transaction so partial writes never become visible
// across the network round trips.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

var _ port.Store = (*MySQLAdapter)(nil)

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			role VARCHAR(32) NOT NULL DEFAULT 'client',
			UNIQUE KEY uniq_users_email (email)
		)`,
		`CREATE TABLE IF NOT EXISTS restaurants (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			restaurant_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			price_cents BIGINT NOT NULL,
			KEY idx_menu_items_restaurant (restaurant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_partners (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			vehicle_type VARCHAR(32) NOT NULL DEFAULT 'other'
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			restaurant_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(32) NOT NULL,
			payment_status VARCHAR(32) NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL DEFAULT 0,
			name VARCHAR(255) NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			qty BIGINT NOT NULL,
			KEY idx_order_items_order (order_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payment_receipts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			provider VARCHAR(64) NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL DEFAULT 'USD',
			raw JSON NULL,
			KEY idx_payment_receipts_order (order_id)
		)`,
		`CREATE TABLE IF NOT EXISTS processed_payment_events (
			event_id VARCHAR(255) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_assignments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			partner_id BIGINT NOT NULL,
			status VARCHAR(32) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			KEY idx_assignments_order (order_id),
			KEY idx_assignments_partner (partner_id)
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_locations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			partner_id BIGINT NOT NULL,
			order_id BIGINT NOT NULL DEFAULT 0,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			ts BIGINT NOT NULL,
			KEY idx_locations_order (order_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func isDupEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDupEntry
}

// ----- orders -----

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if order.CreatedAt == 0 {
		order.CreatedAt = time.Now().UnixMilli()
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (restaurant_id, user_id, status, payment_status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.RestaurantID, order.UserID, order.Status, order.PaymentStatus, order.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	order.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Order{}, fmt.Errorf("order id: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, item_id, name, price_cents, qty)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, it.ItemID, it.Name, it.PriceCents, it.Qty,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, restaurant_id, user_id, status, payment_status, created_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.RestaurantID, &o.UserID, &o.Status, &o.PaymentStatus, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}

	o.Items, err = m.orderItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, name, price_cents, qty
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ItemID, &it.Name, &it.PriceCents, &it.Qty); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, restaurant_id, user_id, status, payment_status, created_at
		FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.RestaurantID, &o.UserID, &o.Status, &o.PaymentStatus, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = m.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if _, err := m.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, id); err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return m.GetOrder(ctx, id)
}

func (m *MySQLAdapter) UpdateOrderPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Order, error) {
	if _, err := m.db.ExecContext(ctx, `UPDATE orders SET payment_status = ? WHERE id = ?`, status, id); err != nil {
		return domain.Order{}, fmt.Errorf("update payment status: %w", err)
	}
	return m.GetOrder(ctx, id)
}

// ----- payments -----

func (m *MySQLAdapter) CreateReceipt(ctx context.Context, receipt domain.Receipt) (domain.Receipt, error) {
	var raw any
	if len(receipt.Raw) > 0 {
		raw = []byte(receipt.Raw)
	}
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO payment_receipts (order_id, provider, amount_cents, currency, raw)
		VALUES (?, ?, ?, ?, ?)`,
		receipt.OrderID, receipt.Provider, receipt.AmountCents, receipt.Currency, raw,
	)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	receipt.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("receipt id: %w", err)
	}
	return receipt, nil
}

func (m *MySQLAdapter) HasProcessedEvent(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_payment_events WHERE event_id = ?`, eventID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed event: %w", err)
	}
	return true, nil
}

func (m *MySQLAdapter) MarkEventProcessed(ctx context.Context, eventID string) error {
	if _, err := m.db.ExecContext(ctx,
		`INSERT IGNORE INTO processed_payment_events (event_id) VALUES (?)`, eventID,
	); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// ----- delivery -----

func (m *MySQLAdapter) CreateAssignment(ctx context.Context, orderID, partnerID int64) (domain.Assignment, error) {
	now := time.Now().UnixMilli()
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO delivery_assignments (order_id, partner_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		orderID, partnerID, domain.AssignmentStatusAssigned, now, now,
	)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("assignment id: %w", err)
	}
	return domain.Assignment{
		ID:        id,
		OrderID:   orderID,
		PartnerID: partnerID,
		Status:    domain.AssignmentStatusAssigned,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (m *MySQLAdapter) GetAssignment(ctx context.Context, id int64) (domain.Assignment, error) {
	var a domain.Assignment
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_id, partner_id, status, created_at, updated_at
		FROM delivery_assignments WHERE id = ?`, id,
	).Scan(&a.ID, &a.OrderID, &a.PartnerID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, fmt.Errorf("assignment %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("query assignment: %w", err)
	}
	return a, nil
}

func (m *MySQLAdapter) ListAssignmentsForPartner(ctx context.Context, partnerID int64) ([]domain.Assignment, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, partner_id, status, created_at, updated_at
		FROM delivery_assignments WHERE partner_id = ? ORDER BY id DESC`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.OrderID, &a.PartnerID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) SetAssignmentStatus(ctx context.Context, id int64, status domain.AssignmentStatus) (domain.Assignment, error) {
	if _, err := m.db.ExecContext(ctx, `
		UPDATE delivery_assignments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id,
	); err != nil {
		return domain.Assignment{}, fmt.Errorf("update assignment: %w", err)
	}
	return m.GetAssignment(ctx, id)
}

func (m *MySQLAdapter) LatestAssignmentForOrder(ctx context.Context, orderID int64) (domain.Assignment, error) {
	var a domain.Assignment
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_id, partner_id, status, created_at, updated_at
		FROM delivery_assignments WHERE order_id = ? ORDER BY id DESC LIMIT 1`, orderID,
	).Scan(&a.ID, &a.OrderID, &a.PartnerID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, fmt.Errorf("assignment for order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("query latest assignment: %w", err)
	}
	return a, nil
}

func (m *MySQLAdapter) SaveLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if loc.TS == 0 {
		loc.TS = time.Now().UnixMilli()
	}
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO delivery_locations (partner_id, order_id, lat, lng, ts)
		VALUES (?, ?, ?, ?, ?)`,
		loc.PartnerID, loc.OrderID, loc.Lat, loc.Lng, loc.TS,
	)
	if err != nil {
		return domain.Location{}, fmt.Errorf("insert location: %w", err)
	}
	loc.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Location{}, fmt.Errorf("location id: %w", err)
	}
	return loc, nil
}

func (m *MySQLAdapter) LatestLocationForOrder(ctx context.Context, orderID int64) (domain.Location, error) {
	var l domain.Location
	err := m.db.QueryRowContext(ctx, `
		SELECT id, partner_id, order_id, lat, lng, ts
		FROM delivery_locations WHERE order_id = ? ORDER BY ts DESC, id DESC LIMIT 1`, orderID,
	).Scan(&l.ID, &l.PartnerID, &l.OrderID, &l.Lat, &l.Lng, &l.TS)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Location{}, fmt.Errorf("location for order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("query latest location: %w", err)
	}
	return l, nil
}

func (m *MySQLAdapter) CreatePartner(ctx context.Context, partner domain.Partner) (domain.Partner, error) {
	var result sql.Result
	var err error
	if partner.ID != 0 {
		result, err = m.db.ExecContext(ctx, `
			INSERT INTO delivery_partners (id, name, phone, vehicle_type)
			VALUES (?, ?, ?, ?)`,
			partner.ID, partner.Name, partner.Phone, partner.VehicleType,
		)
	} else {
		result, err = m.db.ExecContext(ctx, `
			INSERT INTO delivery_partners (name, phone, vehicle_type)
			VALUES (?, ?, ?)`,
			partner.Name, partner.Phone, partner.VehicleType,
		)
	}
	if isDupEntry(err) {
		return domain.Partner{}, fmt.Errorf("partner %d: %w", partner.ID, domain.ErrConflict)
	}
	if err != nil {
		return domain.Partner{}, fmt.Errorf("insert partner: %w", err)
	}
	if partner.ID == 0 {
		partner.ID, err = result.LastInsertId()
		if err != nil {
			return domain.Partner{}, fmt.Errorf("partner id: %w", err)
		}
	}
	return partner, nil
}

func (m *MySQLAdapter) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, name, phone, vehicle_type FROM delivery_partners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query partners: %w", err)
	}
	defer rows.Close()

	var out []domain.Partner
	for rows.Next() {
		var p domain.Partner
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.VehicleType); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ----- restaurants & menus -----

func (m *MySQLAdapter) CreateRestaurant(ctx context.Context, r domain.Restaurant) (domain.Restaurant, error) {
	result, err := m.db.ExecContext(ctx,
		`INSERT INTO restaurants (name, address, phone) VALUES (?, ?, ?)`,
		r.Name, r.Address, r.Phone,
	)
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("insert restaurant: %w", err)
	}
	r.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("restaurant id: %w", err)
	}
	return r, nil
}

func (m *MySQLAdapter) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	var r domain.Restaurant
	err := m.db.QueryRowContext(ctx,
		`SELECT id, name, address, phone FROM restaurants WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Address, &r.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Restaurant{}, fmt.Errorf("restaurant %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("query restaurant: %w", err)
	}
	return r, nil
}

func (m *MySQLAdapter) ListRestaurants(ctx context.Context) ([]domain.Restaurant, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, name, address, phone FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query restaurants: %w", err)
	}
	defer rows.Close()

	var out []domain.Restaurant
	for rows.Next() {
		var r domain.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.Phone); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	result, err := m.db.ExecContext(ctx,
		`INSERT INTO menu_items (restaurant_id, name, price_cents) VALUES (?, ?, ?)`,
		item.RestaurantID, item.Name, item.PriceCents,
	)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("insert menu item: %w", err)
	}
	item.ID, err = result.LastInsertId()
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("menu item id: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) ListMenuItems(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, restaurant_id, name, price_cents
		FROM menu_items WHERE restaurant_id = ? ORDER BY id`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		var it domain.MenuItem
		if err := rows.Scan(&it.ID, &it.RestaurantID, &it.Name, &it.PriceCents); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ----- users -----

func (m *MySQLAdapter) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	result, err := m.db.ExecContext(ctx,
		`INSERT INTO users (email, name, phone, role) VALUES (?, ?, ?, ?)`,
		u.Email, u.Name, u.Phone, u.Role,
	)
	if isDupEntry(err) {
		return domain.User{}, fmt.Errorf("email %s already exists: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = result.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	return u, nil
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx,
		`SELECT id, email, name, phone, role FROM users WHERE LOWER(email) = LOWER(?)`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (m *MySQLAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, email, name, phone, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ----- metrics -----

func (m *MySQLAdapter) Metrics(ctx context.Context) (domain.Metrics, error) {
	var metrics domain.Metrics
	err := m.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM restaurants),
			(SELECT COUNT(*) FROM orders),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payment_receipts)`,
	).Scan(&metrics.UsersTotal, &metrics.RestaurantsTotal, &metrics.OrdersTotal, &metrics.RevenueCents)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("query metrics: %w", err)
	}
	return metrics, nil
}
