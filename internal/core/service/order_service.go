package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/port"
)

// OrderService owns the order state machine and the payment-status field.
type OrderService struct {
	store port.Store
	bus   *eventbus.Bus
}

func NewOrderService(store port.Store, bus *eventbus.Bus) *OrderService {
	return &OrderService{store: store, bus: bus}
}

// ListFilter narrows List results. Zero values mean no filtering; UserID is
// set for non-privileged callers so they only see their own orders.
type ListFilter struct {
	RestaurantID int64
	UserID       int64
}

// Create validates the restaurant, normalizes the line items and opens the
// order in Submitted/Unpaid. userID is the optional owning user (0 = none).
func (s *OrderService) Create(ctx context.Context, restaurantID, userID int64, items []domain.LineItem) (domain.Order, error) {
	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("restaurant %d does not exist: %w", restaurantID, domain.ErrInvalidInput)
		}
		return domain.Order{}, err
	}

	normalized := normalizeItems(items)
	if len(normalized) == 0 {
		return domain.Order{}, fmt.Errorf("order needs at least one item: %w", domain.ErrInvalidInput)
	}

	order, err := s.store.CreateOrder(ctx, domain.Order{
		RestaurantID:  restaurant.ID,
		UserID:        userID,
		Items:         normalized,
		Status:        domain.OrderStatusSubmitted,
		PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt:     time.Now().UnixMilli(),
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.bus.PublishAdmin(domain.Event{
		Type:         domain.EventNewOrder,
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		Message:      "New order created",
	})
	return order, nil
}

// normalizeItems snapshots each line item: a zero quantity defaults to 1 and
// negative-quantity items are dropped.
func normalizeItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		if it.Qty == 0 {
			it.Qty = 1
		}
		if it.Qty < 0 {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Transition moves the order to next if the state machine allows it. On
// success it notifies admins and, when a delivery assignment exists for the
// order, the assigned partner.
func (s *OrderService) Transition(ctx context.Context, id int64, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrInvalidTransition)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, id, next)
	if err != nil {
		return domain.Order{}, err
	}

	evt := domain.Event{
		Type:         domain.EventOrderStatusChanged,
		OrderID:      updated.ID,
		RestaurantID: updated.RestaurantID,
		Status:       string(updated.Status),
		Message:      fmt.Sprintf("Order #%d -> %s", updated.ID, updated.Status),
	}
	s.bus.PublishAdmin(evt)
	assignment, err := s.store.LatestAssignmentForOrder(ctx, id)
	switch {
	case err == nil:
		s.bus.PublishPartner(assignment.PartnerID, evt)
	case !errors.Is(err, domain.ErrNotFound):
		log.Printf("latest assignment lookup failed for order %d: %v", id, err)
	}
	return updated, nil
}

// SetPaymentStatus records the latest payment status. It is independent of
// the order status state machine.
func (s *OrderService) SetPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Order, error) {
	return s.store.UpdateOrderPaymentStatus(ctx, id, status)
}

func (s *OrderService) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *OrderService) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if filter == (ListFilter{}) {
		return orders, nil
	}
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if filter.RestaurantID != 0 && o.RestaurantID != filter.RestaurantID {
			continue
		}
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
