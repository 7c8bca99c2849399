package inventory

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

type directTx struct{ calls int }

func (d *directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d.calls++
	return fn(ctx)
}

type memRepo struct {
	stock     map[string]int
	movements []Movement
	err       error
}

func newMemRepo(stock map[string]int) *memRepo {
	return &memRepo{stock: stock}
}

func (m *memRepo) Reserve(_ context.Context, id string, qty int) (int, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	if m.stock[id] < qty {
		return m.stock[id], false, nil
	}
	m.stock[id] -= qty
	return m.stock[id], true, nil
}

func (m *memRepo) Release(_ context.Context, id string, qty int) error {
	if m.err != nil {
		return m.err
	}
	m.stock[id] += qty
	return nil
}

func (m *memRepo) Set(_ context.Context, id string, stock int) (int, error) {
	prev := m.stock[id]
	m.stock[id] = stock
	return prev, m.err
}

func (m *memRepo) RecordMovement(_ context.Context, mv *Movement) error {
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *memRepo) ListMovements(_ context.Context, id string, limit int) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if mv.ProductID == id && len(out) < limit {
			out = append(out, mv)
		}
	}
	return out, nil
}

func TestLedger_Reserve(t *testing.T) {
	repo := newMemRepo(map[string]int{"p1": 5})
	l := NewLedger(repo, &directTx{})

	require.NoError(t, l.Reserve(context.Background(), "p1", 3, "cart-1"))
	assert.Equal(t, 2, repo.stock["p1"])
	require.Len(t, repo.movements, 1)
	assert.Equal(t, -3, repo.movements[0].Delta)
	assert.Equal(t, ReasonReserve, repo.movements[0].Reason)
	assert.Equal(t, "cart-1", repo.movements[0].Ref)

	err := l.Reserve(context.Background(), "p1", 3, "cart-2")
	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 3, isErr.Requested)
	assert.Equal(t, 2, isErr.Available)
	assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
	assert.Equal(t, 2, repo.stock["p1"], "failed reservation must not touch stock")
	assert.Len(t, repo.movements, 1)
}

func TestLedger_ReserveInvalidQuantity(t *testing.T) {
	l := NewLedger(newMemRepo(map[string]int{"p1": 5}), &directTx{})

	for _, qty := range []int{0, -1} {
		err := l.Reserve(context.Background(), "p1", qty, "")
		assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
	}
}

func TestLedger_ReserveRepoError(t *testing.T) {
	repo := newMemRepo(map[string]int{})
	repo.err = errors.New("db down")
	l := NewLedger(repo, &directTx{})

	err := l.Reserve(context.Background(), "p1", 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve stock")
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
}

func TestLedger_Release(t *testing.T) {
	repo := newMemRepo(map[string]int{"p1": 1})
	l := NewLedger(repo, &directTx{})

	require.NoError(t, l.Release(context.Background(), "p1", 4, "cart-9"))
	assert.Equal(t, 5, repo.stock["p1"])
	require.Len(t, repo.movements, 1)
	assert.Equal(t, 4, repo.movements[0].Delta)
	assert.Equal(t, ReasonRelease, repo.movements[0].Reason)
}

func TestLedger_Set(t *testing.T) {
	repo := newMemRepo(map[string]int{"p1": 10})
	tx := &directTx{}
	l := NewLedger(repo, tx)

	require.NoError(t, l.Set(context.Background(), "p1", 7, "recount"))
	assert.Equal(t, 7, repo.stock["p1"])
	assert.Equal(t, 1, tx.calls)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, -3, repo.movements[0].Delta)
	assert.Equal(t, ReasonAdjust, repo.movements[0].Reason)

	// Unchanged level records nothing.
	require.NoError(t, l.Set(context.Background(), "p1", 7, "recount"))
	assert.Len(t, repo.movements, 1)

	err := l.Set(context.Background(), "p1", -1, "")
	assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
}

func TestLedger_Open(t *testing.T) {
	repo := newMemRepo(map[string]int{"p1": 12})
	l := NewLedger(repo, &directTx{})

	require.NoError(t, l.Open(context.Background(), "p1", 12, "opening"))
	require.Len(t, repo.movements, 1)
	assert.Equal(t, 12, repo.movements[0].Delta)
	assert.Equal(t, ReasonAdjust, repo.movements[0].Reason)
	assert.Equal(t, "opening", repo.movements[0].Ref)
	assert.Equal(t, 12, repo.stock["p1"], "level is written by the product insert")

	require.NoError(t, l.Open(context.Background(), "p2", 0, "opening"))
	assert.Len(t, repo.movements, 1)

	err := l.Open(context.Background(), "p3", -1, "opening")
	assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
}

func TestLedger_MovementsLimit(t *testing.T) {
	repo := newMemRepo(map[string]int{"p1": 100})
	l := NewLedger(repo, &directTx{})
	for range 3 {
		require.NoError(t, l.Reserve(context.Background(), "p1", 1, ""))
	}

	ms, err := l.Movements(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.Len(t, ms, 2)

	ms, err = l.Movements(context.Background(), "p1", 0)
	require.NoError(t, err)
	assert.Len(t, ms, 3)
}
