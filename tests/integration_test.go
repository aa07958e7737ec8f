package tests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/food-delivery/internal/adapter/payment"
	"github.com/rl1809/food-delivery/internal/adapter/storage"
	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	store   *storage.MySQLAdapter
	dedup   *storage.RedisAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/fooddelivery?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		store: storage.NewMySQLAdapter(db),
		dedup: storage.NewRedisAdapter(rdb),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_FullOrderFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	bus := eventbus.New()
	gateway := payment.NewMockGateway("integration_secret")

	orders := service.NewOrderService(env.store, bus)
	payments := service.NewPaymentService(env.store, gateway, env.dedup, bus)
	delivery := service.NewDeliveryService(env.store, bus)
	users := service.NewUserService(env.store)
	users.OnRegistered(delivery.ProvisionPartner)

	restaurant, err := env.store.CreateRestaurant(ctx, domain.Restaurant{Name: "Integration Kitchen"})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}

	// Order with a single 2000-cent item.
	order, err := orders.Create(ctx, restaurant.ID, 0, []domain.LineItem{
		{ItemID: 1, Name: "Taco al Pastor", PriceCents: 2000, Qty: 1},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != domain.OrderStatusSubmitted || order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("unexpected initial order %+v", order)
	}

	// Payment: intent amount comes from the stored line items, confirm
	// writes one receipt and flips the payment status.
	intent, err := payments.CreateIntent(ctx, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.AmountCents != 2000 {
		t.Errorf("expected intent amount 2000, got %d", intent.AmountCents)
	}

	paid, _, err := payments.Confirm(ctx, order.ID, intent.ClientSecret, "succeeded")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentStatusSucceeded {
		t.Errorf("expected Succeeded, got %s", paid.PaymentStatus)
	}

	// Webhook deduplication is backed by Redis, so it holds across service
	// instances.
	eventID := uuid.NewString()
	header := http.Header{}
	header.Set(payment.SignatureHeader, "integration_secret")
	body := []byte(fmt.Sprintf(`{"eventId":"%s","orderId":%d,"event":"payment.updated","status":"Succeeded"}`, eventID, order.ID))

	first, err := payments.HandleWebhook(ctx, header, body)
	if err != nil || !first.OK || first.Duplicate {
		t.Fatalf("expected applied ack, got %+v (err %v)", first, err)
	}

	payments2 := service.NewPaymentService(env.store, gateway, env.dedup, bus)
	second, err := payments2.HandleWebhook(ctx, header, body)
	if err != nil || !second.OK || !second.Duplicate {
		t.Fatalf("expected duplicate ack from a fresh service, got %+v (err %v)", second, err)
	}

	// Status chain ends at ReadyForPickup.
	for _, next := range []domain.OrderStatus{
		domain.OrderStatusAccepted,
		domain.OrderStatusPreparing,
		domain.OrderStatusReadyForPickup,
	} {
		if order, err = orders.Transition(ctx, order.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if _, err := orders.Transition(ctx, order.ID, domain.OrderStatus("Delivered")); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition past terminal state, got %v", err)
	}

	// Delivery: a registered delivery user keeps their user id as partner
	// id, gets the assignment, and reports a location.
	rider, err := users.Register(ctx, uuid.NewString()+"@integration.test", "Rider", "", domain.RoleDelivery)
	if err != nil {
		t.Fatalf("register rider: %v", err)
	}

	assignment, err := delivery.Assign(ctx, order.ID, rider.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.Status != domain.AssignmentStatusAssigned {
		t.Errorf("expected Assigned, got %s", assignment.Status)
	}

	if _, err := delivery.Accept(ctx, assignment.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := delivery.RecordLocation(ctx, rider.ID, order.ID, 18.92, -99.23); err != nil {
		t.Fatalf("record location: %v", err)
	}

	loc, err := delivery.LatestLocationFor(ctx, order.ID)
	if err != nil || loc.Lat != 18.92 {
		t.Errorf("expected the recorded sample, got %+v (err %v)", loc, err)
	}

	latest, err := delivery.LatestAssignmentFor(ctx, order.ID)
	if err != nil || latest.PartnerID != rider.ID {
		t.Errorf("expected assignment for partner %d, got %+v (err %v)", rider.ID, latest, err)
	}
}
