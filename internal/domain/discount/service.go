package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service resolves discounts for pricing and administers them.
type Service struct {
	repo Repository
	tx   Transactor
	now  func() time.Time
}

// NewService creates a discount Service.
func NewService(repo Repository, tx Transactor) *Service {
	return &Service{repo: repo, tx: tx, now: time.Now}
}

// Resolve returns the discount applicable to productID at instant at, or nil
// when there is none.
func (s *Service) Resolve(ctx context.Context, productID string, at time.Time) (*Discount, error) {
	d, err := s.repo.FindApplicable(ctx, productID, at)
	if err != nil {
		return nil, errors.Wrap(err, "resolve discount")
	}
	return d, nil
}

// List returns every discount.
func (s *Service) List(ctx context.Context) ([]Discount, error) {
	ds, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return ds, nil
}

// Get returns a discount by id.
func (s *Service) Get(ctx context.Context, id string) (*Discount, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get discount")
	}
	return d, nil
}

// Create validates and stores a new discount.
func (s *Service) Create(ctx context.Context, in Input) (*Discount, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	d := &Discount{
		ID:        uuid.New().String(),
		CreatedAt: s.now(),
	}
	in.assign(d)

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, d); err != nil {
			return err
		}
		return s.repo.Create(ctx, d)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create discount")
	}
	return d, nil
}

// Update replaces the writable fields of an existing discount.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Discount, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var d *Discount
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		in.assign(cur)
		if err := s.checkOverlap(ctx, cur); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, cur); err != nil {
			return err
		}
		d = cur
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update discount")
	}
	return d, nil
}

// Delete removes a discount.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete discount")
	}
	return nil
}

// checkOverlap rejects d when another active discount of the same product
// shares part of its window. Unscoped and inactive discounts never conflict.
func (s *Service) checkOverlap(ctx context.Context, d *Discount) error {
	if !d.Active || d.ProductID == nil {
		return nil
	}

	if err := s.repo.LockProduct(ctx, *d.ProductID); err != nil {
		return err
	}
	others, err := s.repo.ListActiveForProduct(ctx, *d.ProductID)
	if err != nil {
		return err
	}
	for i := range others {
		if others[i].ID != d.ID && d.Overlaps(&others[i]) {
			return ErrOverlap
		}
	}
	return nil
}

func (in Input) assign(d *Discount) {
	d.Name = in.Name
	d.Kind = in.Kind
	d.Value = in.Value
	d.StartsAt = in.StartsAt
	d.EndsAt = in.EndsAt
	d.ProductID = in.ProductID
	d.Active = in.Active
}
