package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/port"
)

// DeliveryService manages order-to-partner assignments and partner location
// pings.
type DeliveryService struct {
	store port.Store
	bus   *eventbus.Bus
}

func NewDeliveryService(store port.Store, bus *eventbus.Bus) *DeliveryService {
	return &DeliveryService{store: store, bus: bus}
}

// Assign creates a new assignment in Assigned state and notifies both the
// partner and the admin dashboard. Re-assigning an order creates a new row;
// the highest id stays authoritative.
func (s *DeliveryService) Assign(ctx context.Context, orderID, partnerID int64) (domain.Assignment, error) {
	if orderID <= 0 || partnerID <= 0 {
		return domain.Assignment{}, fmt.Errorf("orderId and partnerId required: %w", domain.ErrInvalidInput)
	}

	assignment, err := s.store.CreateAssignment(ctx, orderID, partnerID)
	if err != nil {
		return domain.Assignment{}, err
	}

	evt := domain.Event{
		Type:    domain.EventDeliveryAssigned,
		OrderID: assignment.OrderID,
		Message: fmt.Sprintf("Order #%d assigned to partner #%d", assignment.OrderID, assignment.PartnerID),
	}
	s.bus.PublishPartner(assignment.PartnerID, evt)
	evt.PartnerID = assignment.PartnerID
	s.bus.PublishAdmin(evt)
	return assignment, nil
}

// Accept moves the assignment to Accepted.
func (s *DeliveryService) Accept(ctx context.Context, assignmentID int64) (domain.Assignment, error) {
	assignment, err := s.store.SetAssignmentStatus(ctx, assignmentID, domain.AssignmentStatusAccepted)
	if err != nil {
		return domain.Assignment{}, err
	}
	s.bus.PublishAdmin(domain.Event{
		Type:      domain.EventDeliveryAccepted,
		OrderID:   assignment.OrderID,
		PartnerID: assignment.PartnerID,
		Message:   fmt.Sprintf("Partner accepted assignment #%d", assignment.ID),
	})
	return assignment, nil
}

// SetStatus records pickup or delivery. Anything else is rejected.
func (s *DeliveryService) SetStatus(ctx context.Context, assignmentID int64, status domain.AssignmentStatus) (domain.Assignment, error) {
	if status != domain.AssignmentStatusPickedUp && status != domain.AssignmentStatusDelivered {
		return domain.Assignment{}, fmt.Errorf("status must be PickedUp or Delivered: %w", domain.ErrInvalidInput)
	}

	assignment, err := s.store.SetAssignmentStatus(ctx, assignmentID, status)
	if err != nil {
		return domain.Assignment{}, err
	}
	s.bus.PublishAdmin(domain.Event{
		Type:      domain.EventDeliveryStatus,
		OrderID:   assignment.OrderID,
		PartnerID: assignment.PartnerID,
		Status:    string(assignment.Status),
		Message:   fmt.Sprintf("Assignment #%d -> %s", assignment.ID, assignment.Status),
	})
	return assignment, nil
}

// RecordLocation appends a partner location sample. orderID may be 0 for
// pings not scoped to an order.
func (s *DeliveryService) RecordLocation(ctx context.Context, partnerID, orderID int64, lat, lng float64) (domain.Location, error) {
	if partnerID <= 0 {
		return domain.Location{}, fmt.Errorf("partnerId required: %w", domain.ErrInvalidInput)
	}

	loc, err := s.store.SaveLocation(ctx, domain.Location{
		PartnerID: partnerID,
		OrderID:   orderID,
		Lat:       lat,
		Lng:       lng,
	})
	if err != nil {
		return domain.Location{}, err
	}
	s.bus.PublishAdmin(domain.Event{
		Type:      domain.EventLocationUpdate,
		OrderID:   loc.OrderID,
		PartnerID: loc.PartnerID,
		Extra:     map[string]any{"lat": loc.Lat, "lng": loc.Lng},
	})
	return loc, nil
}

func (s *DeliveryService) ListAssignments(ctx context.Context, partnerID int64) ([]domain.Assignment, error) {
	return s.store.ListAssignmentsForPartner(ctx, partnerID)
}

func (s *DeliveryService) LatestAssignmentFor(ctx context.Context, orderID int64) (domain.Assignment, error) {
	return s.store.LatestAssignmentForOrder(ctx, orderID)
}

func (s *DeliveryService) LatestLocationFor(ctx context.Context, orderID int64) (domain.Location, error) {
	return s.store.LatestLocationForOrder(ctx, orderID)
}

// ProvisionPartner creates the delivery-partner record for a freshly
// registered delivery-role user. The partner keeps the user's id so admins
// can assign orders by it. Called from the registration notification, not
// from user creation itself.
func (s *DeliveryService) ProvisionPartner(ctx context.Context, u domain.User) error {
	if u.Role != domain.RoleDelivery {
		return nil
	}
	_, err := s.store.CreatePartner(ctx, domain.Partner{
		ID:          u.ID,
		Name:        u.Email,
		Phone:       u.Phone,
		VehicleType: "other",
	})
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}
