package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/food-delivery/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/fooddelivery?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func TestMySQLOrders_RoundTrip(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	restaurant, err := adapter.CreateRestaurant(ctx, domain.Restaurant{Name: "Integration Kitchen"})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}

	created, err := adapter.CreateOrder(ctx, domain.Order{
		RestaurantID: restaurant.ID,
		Items: []domain.LineItem{
			{ItemID: 1, Name: "Taco", PriceCents: 2000, Qty: 2},
			{ItemID: 2, Name: "Agua", PriceCents: 1200, Qty: 1},
		},
		Status:        domain.OrderStatusSubmitted,
		PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := adapter.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 2 || got.AmountCents() != 5200 {
		t.Errorf("items did not survive the round trip: %+v", got)
	}

	updated, err := adapter.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusAccepted)
	if err != nil || updated.Status != domain.OrderStatusAccepted {
		t.Errorf("expected Accepted, got %+v (err %v)", updated, err)
	}

	if _, err := adapter.GetOrder(ctx, -1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQLEventDedup(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	eventID := fmt.Sprintf("test-evt-%d", time.Now().UnixNano())

	seen, err := adapter.HasProcessedEvent(ctx, eventID)
	if err != nil || seen {
		t.Fatalf("expected unseen event, got %v (err %v)", seen, err)
	}
	if err := adapter.MarkEventProcessed(ctx, eventID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	// INSERT IGNORE makes re-marking safe under redelivery races.
	if err := adapter.MarkEventProcessed(ctx, eventID); err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
	seen, err = adapter.HasProcessedEvent(ctx, eventID)
	if err != nil || !seen {
		t.Fatalf("expected seen event, got %v (err %v)", seen, err)
	}
}

func TestMySQLLatestAssignment(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	// A synthetic order id far from the auto-increment range keeps this
	// test independent of other rows.
	orderID := time.Now().UnixNano()

	if _, err := adapter.LatestAssignmentForOrder(ctx, orderID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := adapter.CreateAssignment(ctx, orderID, 5); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	second, err := adapter.CreateAssignment(ctx, orderID, 6)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	latest, err := adapter.LatestAssignmentForOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.ID != second.ID || latest.PartnerID != 6 {
		t.Errorf("expected assignment %d for partner 6, got %+v", second.ID, latest)
	}
}

func TestMySQLCreateUser_DuplicateEmail(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	email := fmt.Sprintf("test-%d@example.com", time.Now().UnixNano())
	if _, err := adapter.CreateUser(ctx, domain.User{Email: email, Role: domain.RoleClient}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := adapter.CreateUser(ctx, domain.User{Email: email, Role: domain.RoleClient}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestMySQLCreatePartner_ExplicitID(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	id := time.Now().UnixNano()
	p, err := adapter.CreatePartner(ctx, domain.Partner{ID: id, Name: "Rider"})
	if err != nil || p.ID != id {
		t.Fatalf("expected partner %d, got %+v (err %v)", id, p, err)
	}
	if _, err := adapter.CreatePartner(ctx, domain.Partner{ID: id}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for taken id, got %v", err)
	}
}
