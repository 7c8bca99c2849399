package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/discount"
	"github.com/xenking/kart-pos/internal/domain/product"
)

// Pricer computes live line prices from the catalog and the current
// discounts. Stored item prices are never used.
type Pricer struct {
	products  ProductReader
	discounts Resolver
}

// NewPricer creates a Pricer.
func NewPricer(products ProductReader, discounts Resolver) *Pricer {
	return &Pricer{products: products, discounts: discounts}
}

// UnitPrice returns the discounted price of p at instant at along with the
// discount that produced it.
func (p *Pricer) UnitPrice(ctx context.Context, prod *product.Product, at time.Time) (decimal.Decimal, *discount.Discount, error) {
	d, err := p.discounts.Resolve(ctx, prod.ID, at)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return discount.Apply(prod.Price, d), d, nil
}

// Price prices items at instant at and returns the lines with their sum.
func (p *Pricer) Price(ctx context.Context, items []Item, at time.Time) ([]Line, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, nil
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	products, err := p.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "load cart products")
	}
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	type priced struct {
		unit decimal.Decimal
		d    *discount.Discount
	}
	cache := make(map[string]priced, len(byID))

	lines := make([]Line, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		prod, ok := byID[it.ProductID]
		if !ok {
			return nil, decimal.Zero, errors.Errorf("product %s of cart item %s is missing", it.ProductID, it.ID)
		}

		pr, ok := cache[prod.ID]
		if !ok {
			unit, d, err := p.UnitPrice(ctx, prod, at)
			if err != nil {
				return nil, decimal.Zero, errors.Wrap(err, "price cart item")
			}
			pr = priced{unit: unit, d: d}
			cache[prod.ID] = pr
		}

		lineTotal := pr.unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		lines = append(lines, Line{
			Item:      it,
			Product:   *prod,
			Discount:  pr.d,
			UnitPrice: pr.unit,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	return lines, total.Round(2), nil
}
