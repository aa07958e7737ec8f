package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/food-delivery/internal/adapter/handler"
	"github.com/rl1809/food-delivery/internal/adapter/payment"
	"github.com/rl1809/food-delivery/internal/adapter/storage"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/core/service"
	"github.com/rl1809/food-delivery/internal/port"
)

const (
	defaultHTTPAddr = ":8080"
	defaultStore    = "memory"
	defaultMySQLDSN = "root:root@tcp(localhost:3306)/fooddelivery?parseTime=true"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := getenv("HTTP_ADDR", defaultHTTPAddr)

	// Select the persistence backend once, here.
	var store port.Store
	switch kind := getenv("STORE", defaultStore); kind {
	case "mysql":
		db, err := sql.Open("mysql", getenv("MYSQL_DSN", defaultMySQLDSN))
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		if err := storage.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("failed to ensure schema: %v", err)
		}
		defer db.Close()
		store = storage.NewMySQLAdapter(db)
		log.Println("connected to mysql")
	case "memory":
		mem := storage.NewMemoryAdapter()
		if err := mem.Seed(ctx); err != nil {
			log.Fatalf("failed to seed memory store: %v", err)
		}
		store = mem
		log.Println("using in-memory store")
	default:
		log.Fatalf("unknown STORE %q (want memory or mysql)", kind)
	}

	// Webhook dedup lives in Redis when configured, otherwise in the store.
	var dedup port.EventDedup = store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		dedup = storage.NewRedisAdapter(rdb)
		log.Println("connected to redis")
	}

	bus := eventbus.New()
	gateway := payment.NewMockGateway(os.Getenv("WEBHOOK_SECRET"))

	orderService := service.NewOrderService(store, bus)
	paymentService := service.NewPaymentService(store, gateway, dedup, bus)
	deliveryService := service.NewDeliveryService(store, bus)
	userService := service.NewUserService(store)
	userService.OnRegistered(deliveryService.ProvisionPartner)

	httpHandler := handler.NewHTTPHandler(orderService, paymentService, deliveryService, userService, store)
	sseHandler := handler.NewSSEHandler(bus, orderService, deliveryService)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler.NewRouter(httpHandler, sseHandler),
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")
}
