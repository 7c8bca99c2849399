package product

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

type mockRepo struct {
	created   *Product
	createErr error
	deletedID string
	deleteErr error
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) { return nil, nil }

func (m *mockRepo) GetByID(_ context.Context, _ string) (*Product, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) GetByIDs(_ context.Context, _ []string) ([]Product, error) { return nil, nil }

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	return m.createErr
}

func (m *mockRepo) SoftDelete(_ context.Context, id string, _ time.Time) error {
	m.deletedID = id
	return m.deleteErr
}

type opening struct {
	productID string
	stock     int
	ref       string
}

type mockStock struct {
	opened []opening
	err    error
}

func (m *mockStock) Open(_ context.Context, productID string, stock int, ref string) error {
	m.opened = append(m.opened, opening{productID: productID, stock: stock, ref: ref})
	return m.err
}

type directTx struct{ calls int }

func (d *directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d.calls++
	return fn(ctx)
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name     string
		req      CreateRequest
		repoErr  error
		wantKind fault.Kind
		wantErr  bool
	}{
		{name: "valid", req: CreateRequest{Name: "  Latte ", Price: decimal.RequireFromString("4.505"), Stock: 10, Active: true}},
		{name: "empty name", req: CreateRequest{Name: " ", Price: decimal.NewFromInt(1)}, wantErr: true, wantKind: fault.KindInvalid},
		{name: "negative price", req: CreateRequest{Name: "Tea", Price: decimal.NewFromInt(-1)}, wantErr: true, wantKind: fault.KindInvalid},
		{name: "price too large", req: CreateRequest{Name: "Tea", Price: decimal.RequireFromString("100000000")}, wantErr: true, wantKind: fault.KindInvalid},
		{name: "negative stock", req: CreateRequest{Name: "Tea", Price: decimal.NewFromInt(1), Stock: -2}, wantErr: true, wantKind: fault.KindInvalid},
		{name: "duplicate name", req: CreateRequest{Name: "Tea", Price: decimal.NewFromInt(1)}, repoErr: ErrDuplicateName, wantErr: true, wantKind: fault.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{createErr: tt.repoErr}
			stock := &mockStock{}
			svc := NewService(repo, stock, &directTx{})

			got, err := svc.Create(context.Background(), tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, fault.KindOf(err))
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "Latte", got.Name)
			assert.True(t, decimal.RequireFromString("4.51").Equal(got.Price), "price %s", got.Price)
			assert.Same(t, got, repo.created)
			assert.Equal(t, []opening{{productID: got.ID, stock: 10, ref: "opening"}}, stock.opened)
		})
	}
}

func TestService_CreateOpeningStockFailure(t *testing.T) {
	repo := &mockRepo{}
	stock := &mockStock{err: errors.New("db down")}
	tx := &directTx{}
	svc := NewService(repo, stock, tx)

	_, err := svc.Create(context.Background(), CreateRequest{Name: "Tea", Price: decimal.NewFromInt(1), Stock: 3})
	require.Error(t, err)
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
	assert.Equal(t, 1, tx.calls, "insert and opening movement share one transaction")
}

func TestService_Delete(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockStock{}, &directTx{})

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.Equal(t, "p1", repo.deletedID)

	repo.deleteErr = errors.New("db down")
	err := svc.Delete(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete product")
}

func TestSellable(t *testing.T) {
	now := time.Now()
	assert.True(t, Product{Active: true}.Sellable())
	assert.False(t, Product{Active: false}.Sellable())
	assert.False(t, Product{Active: true, DeletedAt: &now}.Sellable())
}
