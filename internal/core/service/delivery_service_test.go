package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/food-delivery/internal/adapter/storage"
	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
)

func newDeliveryFixture(t *testing.T) (*DeliveryService, *storage.MemoryAdapter, *eventbus.Bus) {
	t.Helper()
	store := storage.NewMemoryAdapter()
	bus := eventbus.New()
	return NewDeliveryService(store, bus), store, bus
}

func TestAssign_CreatesAssignedAndNotifies(t *testing.T) {
	svc, _, bus := newDeliveryFixture(t)
	ctx := context.Background()

	partnerCh, offPartner := bus.SubscribePartner(5)
	defer offPartner()
	adminCh, offAdmin := bus.SubscribeAdmin()
	defer offAdmin()

	assignment, err := svc.Assign(ctx, 1, 5)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if assignment.Status != domain.AssignmentStatusAssigned {
		t.Errorf("expected Assigned, got %s", assignment.Status)
	}

	partnerEvt := waitEvent(t, partnerCh, domain.EventDeliveryAssigned)
	if partnerEvt.OrderID != 1 {
		t.Errorf("expected order 1 on partner event, got %d", partnerEvt.OrderID)
	}
	adminEvt := waitEvent(t, adminCh, domain.EventDeliveryAssigned)
	if adminEvt.PartnerID != 5 {
		t.Errorf("expected partner 5 on admin event, got %d", adminEvt.PartnerID)
	}
}

func TestAssign_MissingIDs(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t)

	if _, err := svc.Assign(context.Background(), 0, 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing order, got %v", err)
	}
	if _, err := svc.Assign(context.Background(), 1, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing partner, got %v", err)
	}
}

func TestLatestAssignment_HighestIDWins(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	first, err := svc.Assign(ctx, 1, 5)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	latest, err := svc.LatestAssignmentFor(ctx, 1)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.ID != first.ID {
		t.Errorf("expected assignment %d, got %d", first.ID, latest.ID)
	}

	second, err := svc.Assign(ctx, 1, 6)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}

	latest, err = svc.LatestAssignmentFor(ctx, 1)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.ID != second.ID || latest.PartnerID != 6 {
		t.Errorf("expected newest assignment %d for partner 6, got %d for %d", second.ID, latest.ID, latest.PartnerID)
	}
}

func TestAccept(t *testing.T) {
	svc, _, bus := newDeliveryFixture(t)
	ctx := context.Background()

	assignment, err := svc.Assign(ctx, 1, 5)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	ch, off := bus.SubscribeAdmin()
	defer off()

	accepted, err := svc.Accept(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != domain.AssignmentStatusAccepted {
		t.Errorf("expected Accepted, got %s", accepted.Status)
	}
	waitEvent(t, ch, domain.EventDeliveryAccepted)

	if _, err := svc.Accept(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatus_RestrictedValues(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	assignment, err := svc.Assign(ctx, 1, 5)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	for _, status := range []domain.AssignmentStatus{domain.AssignmentStatusAssigned, domain.AssignmentStatusAccepted, "Lost"} {
		if _, err := svc.SetStatus(ctx, assignment.ID, status); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("status %s: expected ErrInvalidInput, got %v", status, err)
		}
	}

	updated, err := svc.SetStatus(ctx, assignment.ID, domain.AssignmentStatusPickedUp)
	if err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if updated.Status != domain.AssignmentStatusPickedUp {
		t.Errorf("expected PickedUp, got %s", updated.Status)
	}

	if _, err := svc.SetStatus(ctx, 999, domain.AssignmentStatusDelivered); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordLocation_And_LatestForOrder(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	if _, err := svc.RecordLocation(ctx, 0, 1, 18.9, -99.2); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing partner, got %v", err)
	}

	if _, err := svc.LatestLocationFor(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound before any ping, got %v", err)
	}

	first, err := svc.RecordLocation(ctx, 5, 1, 18.90, -99.20)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	second, err := svc.RecordLocation(ctx, 5, 1, 18.91, -99.21)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if second.TS < first.TS {
		t.Fatalf("samples out of order: %d then %d", first.TS, second.TS)
	}

	// Unscoped ping must not affect the order's series.
	if _, err := svc.RecordLocation(ctx, 5, 0, 0, 0); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	latest, err := svc.LatestLocationFor(ctx, 1)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.Lat != 18.91 || latest.Lng != -99.21 {
		t.Errorf("expected newest sample, got %+v", latest)
	}
}

func TestProvisionPartner(t *testing.T) {
	svc, store, _ := newDeliveryFixture(t)
	ctx := context.Background()

	user := domain.User{ID: 42, Email: "rider@example.com", Role: domain.RoleDelivery}
	if err := svc.ProvisionPartner(ctx, user); err != nil {
		t.Fatalf("provision failed: %v", err)
	}

	partners, err := store.ListPartners(ctx)
	if err != nil || len(partners) != 1 {
		t.Fatalf("expected 1 partner, got %d (err %v)", len(partners), err)
	}
	// Partner id mirrors the user id so admins can assign by it.
	if partners[0].ID != 42 {
		t.Errorf("expected partner id 42, got %d", partners[0].ID)
	}

	// Re-provisioning the same user is a no-op, not an error.
	if err := svc.ProvisionPartner(ctx, user); err != nil {
		t.Fatalf("re-provision failed: %v", err)
	}

	// Non-delivery roles never get a partner record.
	if err := svc.ProvisionPartner(ctx, domain.User{ID: 43, Email: "c@example.com", Role: domain.RoleClient}); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	partners, _ = store.ListPartners(ctx)
	if len(partners) != 1 {
		t.Errorf("expected still 1 partner, got %d", len(partners))
	}
}
