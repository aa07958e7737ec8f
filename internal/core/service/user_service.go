package service

import (
	"context"
	"fmt"
	"log"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/port"
)

// RegistrationListener is notified after a user has been created. The
// delivery tracker uses this to provision partner records without user
// creation knowing about delivery at all.
type RegistrationListener func(ctx context.Context, u domain.User) error

type UserService struct {
	store     port.Store
	listeners []RegistrationListener
}

func NewUserService(store port.Store) *UserService {
	return &UserService{store: store}
}

// OnRegistered adds a listener. Must be called during wiring, before the
// service starts handling requests.
func (s *UserService) OnRegistered(fn RegistrationListener) {
	s.listeners = append(s.listeners, fn)
}

// Register creates a user. A duplicate email fails with domain.ErrConflict.
func (s *UserService) Register(ctx context.Context, email, name, phone, role string) (domain.User, error) {
	if email == "" {
		return domain.User{}, fmt.Errorf("email required: %w", domain.ErrInvalidInput)
	}
	if role == "" {
		role = domain.RoleClient
	}

	u, err := s.store.CreateUser(ctx, domain.User{Email: email, Name: name, Phone: phone, Role: role})
	if err != nil {
		return domain.User{}, err
	}

	for _, fn := range s.listeners {
		if err := fn(ctx, u); err != nil {
			log.Printf("registration listener failed for user %d: %v", u.ID, err)
		}
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}
