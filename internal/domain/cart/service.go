package cart

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/money"
	"github.com/xenking/kart-pos/internal/domain/product"
	"github.com/xenking/kart-pos/internal/domain/user"
)

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserReader looks up users.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Stock reserves and releases product stock.
type Stock interface {
	Reserve(ctx context.Context, productID string, qty int, ref string) error
	Release(ctx context.Context, productID string, qty int, ref string) error
}

// Service implements the cart operations.
type Service struct {
	repo     Repository
	users    UserReader
	products ProductReader
	stock    Stock
	pricer   *Pricer
	tx       Transactor
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(repo Repository, users UserReader, products ProductReader, stock Stock, pricer *Pricer, tx Transactor) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		products: products,
		stock:    stock,
		pricer:   pricer,
		tx:       tx,
		now:      time.Now,
	}
}

// Get returns the user's cart priced at the current time.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}

	lines, total, err := s.pricer.Price(ctx, items, s.now())
	if err != nil {
		return nil, err
	}
	return &Cart{UserID: userID, Lines: lines, Total: total}, nil
}

// Add reserves stock for every request and stores one item per request.
// Either all items are added or none.
func (s *Service) Add(ctx context.Context, userID string, reqs []AddRequest) ([]Item, error) {
	if len(reqs) == 0 {
		return nil, fault.Invalid("products must not be empty")
	}
	for i, r := range reqs {
		if strings.TrimSpace(r.ProductID) == "" {
			return nil, fault.Invalidf("products[%d]: productId is required", i)
		}
		if r.Quantity <= 0 {
			return nil, fault.Invalidf("products[%d]: quantity must be greater than 0", i)
		}
	}

	// Reserve in product order so concurrent carts lock rows consistently.
	order := make([]int, len(reqs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return strings.Compare(reqs[a].ProductID, reqs[b].ProductID)
	})

	items := make([]Item, len(reqs))
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return err
		}

		now := s.now()
		for _, idx := range order {
			r := reqs[idx]

			p, err := s.products.GetByID(ctx, r.ProductID)
			if err != nil {
				return err
			}
			if !p.Sellable() {
				return product.ErrNotFound
			}

			item := Item{
				ID:        uuid.New().String(),
				UserID:    userID,
				ProductID: p.ID,
				Quantity:  r.Quantity,
				CreatedAt: now,
			}
			if err := s.stock.Reserve(ctx, p.ID, r.Quantity, item.ID); err != nil {
				return err
			}

			unit, _, err := s.pricer.UnitPrice(ctx, p, now)
			if err != nil {
				return err
			}
			item.UnitPrice = unit
			item.LineTotal = unit.Mul(decimal.NewFromInt(int64(r.Quantity))).Round(2)
			if err := money.Check("line total", item.LineTotal); err != nil {
				return err
			}

			if err := s.repo.Insert(ctx, &item); err != nil {
				return err
			}
			items[idx] = item
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "add to cart")
	}
	return items, nil
}

// Remove deletes one of the user's items and releases its stock.
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetForUser(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if err := s.stock.Release(ctx, item.ProductID, item.Quantity, item.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, item.ID)
	})
	if err != nil {
		return errors.Wrap(err, "remove from cart")
	}
	return nil
}
