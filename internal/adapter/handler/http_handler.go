package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/service"
	"github.com/rl1809/food-delivery/internal/port"
)

// HTTPHandler exposes the REST surface. It only translates between HTTP and
// the services; every rule lives below it.
type HTTPHandler struct {
	orders   *service.OrderService
	payments *service.PaymentService
	delivery *service.DeliveryService
	users    *service.UserService
	store    port.Store
}

func NewHTTPHandler(orders *service.OrderService, payments *service.PaymentService, delivery *service.DeliveryService, users *service.UserService, store port.Store) *HTTPHandler {
	return &HTTPHandler{orders: orders, payments: payments, delivery: delivery, users: users, store: store}
}

// NewRouter wires every REST and SSE route.
func NewRouter(h *HTTPHandler, sse *SSEHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)

	r.HandleFunc("/restaurants", h.ListRestaurants).Methods(http.MethodGet)
	r.HandleFunc("/restaurants", h.CreateRestaurant).Methods(http.MethodPost)
	r.HandleFunc("/restaurants/{id}/menu", h.ListMenu).Methods(http.MethodGet)
	r.HandleFunc("/restaurants/{id}/menu", h.CreateMenuItem).Methods(http.MethodPost)

	r.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/status", h.TransitionOrder).Methods(http.MethodPost)

	r.HandleFunc("/payments/intent", h.CreateIntent).Methods(http.MethodPost)
	r.HandleFunc("/payments/confirm", h.ConfirmPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/webhook", h.PaymentWebhook).Methods(http.MethodPost)

	r.HandleFunc("/delivery/assignments", h.AssignOrder).Methods(http.MethodPost)
	r.HandleFunc("/delivery/assignments", h.ListAssignments).Methods(http.MethodGet)
	r.HandleFunc("/delivery/assignments/{id}/accept", h.AcceptAssignment).Methods(http.MethodPost)
	r.HandleFunc("/delivery/assignments/{id}/status", h.SetAssignmentStatus).Methods(http.MethodPost)
	r.HandleFunc("/delivery/location", h.RecordLocation).Methods(http.MethodPost)
	r.HandleFunc("/delivery/partners", h.ListPartners).Methods(http.MethodGet)

	r.HandleFunc("/admin/metrics", h.AdminMetrics).Methods(http.MethodGet)
	r.HandleFunc("/admin/users", h.AdminUsers).Methods(http.MethodGet)

	r.HandleFunc("/admin/events", sse.AdminEvents).Methods(http.MethodGet)
	r.HandleFunc("/delivery/events", sse.PartnerEvents).Methods(http.MethodGet)
	r.HandleFunc("/tracking/{orderId}/stream", sse.TrackingStream).Methods(http.MethodGet)

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- auth -----

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	u, err := h.users.Register(r.Context(), req.Email, req.Name, req.Phone, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

// ----- restaurants -----

func (h *HTTPHandler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.store.ListRestaurants(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurants": restaurants})
}

func (h *HTTPHandler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req domain.Restaurant
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.Name == "" {
		writeError(w, errMissingField("name"))
		return
	}
	created, err := h.store.CreateRestaurant(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"restaurant": created})
}

func (h *HTTPHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.store.GetRestaurant(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	items, err := h.store.ListMenuItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *HTTPHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req domain.MenuItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.Name == "" {
		writeError(w, errMissingField("name"))
		return
	}
	if _, err := h.store.GetRestaurant(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	req.RestaurantID = id
	created, err := h.store.CreateMenuItem(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": created})
}

// ----- orders -----

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RestaurantID int64             `json:"restaurantId"`
		UserID       int64             `json:"userId"`
		Items        []domain.LineItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	order, err := h.orders.Create(r.Context(), req.RestaurantID, req.UserID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := service.ListFilter{
		RestaurantID: queryID(r, "restaurantId"),
		UserID:       queryID(r, "userId"),
	}
	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *HTTPHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Next string `json:"next"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.Next == "" {
		writeError(w, errMissingField("next"))
		return
	}
	order, err := h.orders.Transition(r.Context(), id, domain.OrderStatus(req.Next))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// ----- payments -----

func (h *HTTPHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.OrderID == 0 {
		writeError(w, errMissingField("orderId"))
		return
	}
	intent, err := h.payments.CreateIntent(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID      int64  `json:"orderId"`
		ClientSecret string `json:"clientSecret"`
		Outcome      string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.OrderID == 0 || req.ClientSecret == "" {
		writeError(w, errMissingField("orderId and clientSecret"))
		return
	}
	order, _, err := h.payments.Confirm(r.Context(), req.OrderID, req.ClientSecret, req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paymentStatus": order.PaymentStatus, "order": order})
}

func (h *HTTPHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errInvalidBody)
		return
	}
	result, err := h.payments.HandleWebhook(r.Context(), r.Header, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ----- delivery -----

func (h *HTTPHandler) AssignOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   int64 `json:"orderId"`
		PartnerID int64 `json:"partnerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	assignment, err := h.delivery.Assign(r.Context(), req.OrderID, req.PartnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assignment": assignment})
}

func (h *HTTPHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	partnerID := queryID(r, "partnerId")
	if partnerID == 0 {
		writeError(w, errMissingField("partnerId"))
		return
	}
	assignments, err := h.delivery.ListAssignments(r.Context(), partnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *HTTPHandler) AcceptAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	assignment, err := h.delivery.Accept(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignment": assignment})
}

func (h *HTTPHandler) SetAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	assignment, err := h.delivery.SetStatus(r.Context(), id, domain.AssignmentStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignment": assignment})
}

func (h *HTTPHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartnerID int64    `json:"partnerId"`
		OrderID   int64    `json:"orderId"`
		Lat       *float64 `json:"lat"`
		Lng       *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalidBody)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, errMissingField("lat and lng"))
		return
	}
	loc, err := h.delivery.RecordLocation(r.Context(), req.PartnerID, req.OrderID, *req.Lat, *req.Lng)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "location": loc})
}

func (h *HTTPHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.store.ListPartners(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

// ----- admin -----

func (h *HTTPHandler) AdminMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.Metrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

func (h *HTTPHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// ----- helpers -----

var errInvalidBody = fmt.Errorf("invalid request body: %w", domain.ErrInvalidInput)

func errMissingField(name string) error {
	return fmt.Errorf("%s required: %w", name, domain.ErrInvalidInput)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingField(name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
