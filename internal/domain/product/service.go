package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// OpeningStock records the stock a new product starts with.
type OpeningStock interface {
	Open(ctx context.Context, productID string, stock int, ref string) error
}

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements catalog administration on top of a Repository.
type Service struct {
	repo  Repository
	stock OpeningStock
	tx    Transactor
	now   func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository, stock OpeningStock, tx Transactor) *Service {
	return &Service{repo: repo, stock: stock, tx: tx, now: time.Now}
}

// List returns every live product.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a live product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Price:     req.Price.Round(2),
		Stock:     req.Stock,
		Active:    req.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.stock.Open(ctx, p.ID, p.Stock, "opening")
	})
	if err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Delete soft-deletes a product. Order history keeps referencing it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}
