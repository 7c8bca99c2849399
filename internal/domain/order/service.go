package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// Service serves order queries and the status workflow.
type Service struct {
	repo         Repository
	defaultLimit int
	now          func() time.Time
}

// NewService creates an order Service. defaultLimit applies to listings
// that do not ask for a page size.
func NewService(repo Repository, defaultLimit int) *Service {
	return &Service{repo: repo, defaultLimit: defaultLimit, now: time.Now}
}

// List returns the orders matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if err := f.Normalize(s.defaultLimit); err != nil {
		return nil, err
	}
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListView returns the orders of a named view, narrowed further by f.
func (s *Service) ListView(ctx context.Context, v View, f Filter) ([]Order, error) {
	f, err := v.Apply(f)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, f)
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// UpdateStatus moves an order to status. Marking an order ready also marks
// the kitchen work completed.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fault.Invalidf("unknown status %q", status)
	}

	var kitchen KitchenStatus
	if status == StatusReady {
		kitchen = KitchenCompleted
	}
	if err := s.repo.UpdateStatus(ctx, id, status, kitchen, s.now()); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	return s.Get(ctx, id)
}

// UpdateKitchenStatus moves the kitchen workflow of an order.
func (s *Service) UpdateKitchenStatus(ctx context.Context, id string, kitchen KitchenStatus) (*Order, error) {
	if !kitchen.Valid() {
		return nil, fault.Invalidf("unknown kitchen status %q", kitchen)
	}
	if err := s.repo.UpdateKitchenStatus(ctx, id, kitchen, s.now()); err != nil {
		return nil, errors.Wrap(err, "update kitchen status")
	}
	return s.Get(ctx, id)
}
