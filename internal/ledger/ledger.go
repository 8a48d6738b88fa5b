// Package ledger owns the available quantity of every material. Mutations run
// inside the caller's transaction and leave a movement row behind; reads take
// no lock.
package ledger

import (
	"context"
	"errors"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/infra/metrics"
	"github.com/Spok95/supply-requests/internal/store"
)

type Ledger struct {
	st      store.Store
	metrics *metrics.Metrics
}

func New(st store.Store, m *metrics.Metrics) *Ledger {
	return &Ledger{st: st, metrics: m}
}

// Entry describes one stock mutation and what caused it.
type Entry struct {
	MaterialID int64
	Quantity   int64
	Kind       materials.MoveKind
	RequestID  int64
	IncidentID int64
	Actor      string
	Note       string
}

// Decrement takes e.Quantity out of stock with a single conditional update.
// It fails with insufficient_stock instead of letting the level go negative.
func (l *Ledger) Decrement(ctx context.Context, tx store.Tx, e Entry) (materials.Movement, error) {
	const op = "ledger.decrement"
	if e.Quantity <= 0 {
		return materials.Movement{}, errs.New(errs.KindInvalidQuantity, op, "quantity must be greater than zero")
	}
	if e.Kind == "" {
		e.Kind = materials.MoveRequestOut
	}
	if err := tx.DecrementStock(ctx, e.MaterialID, e.Quantity); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			return materials.Movement{}, errs.New(errs.KindInsufficientStock, op, "not enough stock available for this material")
		}
		return materials.Movement{}, err
	}
	return l.record(ctx, tx, e, -e.Quantity)
}

// Increment puts e.Quantity back into stock unconditionally.
func (l *Ledger) Increment(ctx context.Context, tx store.Tx, e Entry) (materials.Movement, error) {
	const op = "ledger.increment"
	if e.Quantity <= 0 {
		return materials.Movement{}, errs.New(errs.KindInvalidQuantity, op, "quantity must be greater than zero")
	}
	if e.Kind == "" {
		e.Kind = materials.MoveReturnIn
	}
	if err := tx.IncrementStock(ctx, e.MaterialID, e.Quantity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return materials.Movement{}, errs.New(errs.KindNotFound, op, "material not found")
		}
		return materials.Movement{}, err
	}
	return l.record(ctx, tx, e, e.Quantity)
}

func (l *Ledger) record(ctx context.Context, tx store.Tx, e Entry, delta int64) (materials.Movement, error) {
	mv := materials.Movement{
		MaterialID: e.MaterialID,
		Delta:      delta,
		Kind:       e.Kind,
		RequestID:  e.RequestID,
		IncidentID: e.IncidentID,
		Actor:      e.Actor,
		Note:       e.Note,
	}
	if err := tx.InsertMovement(ctx, &mv); err != nil {
		return materials.Movement{}, err
	}
	return mv, nil
}

// Committed feeds metrics with movements whose transaction has committed.
func (l *Ledger) Committed(moves ...materials.Movement) {
	for _, mv := range moves {
		l.metrics.Movement(string(mv.Kind), mv.Delta)
	}
}

func (l *Ledger) Read(ctx context.Context, materialID int64) (materials.StockLevel, error) {
	lvl, err := l.st.StockLevel(ctx, materialID)
	if errors.Is(err, store.ErrNotFound) {
		return materials.StockLevel{}, errs.New(errs.KindNotFound, "ledger.read", "material not found")
	}
	if err != nil {
		return materials.StockLevel{}, errs.Wrap(errs.KindPersistence, "ledger.read", err)
	}
	return lvl, nil
}

func (l *Ledger) Levels(ctx context.Context) ([]materials.StockLevel, error) {
	levels, err := l.st.ListStockLevels(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "ledger.levels", err)
	}
	return levels, nil
}

// LowStock lists active materials at or below minimum_quantity + margin.
func (l *Ledger) LowStock(ctx context.Context, margin int64) ([]materials.StockLevel, error) {
	if margin < 0 {
		margin = 0
	}
	levels, err := l.st.ListLowStock(ctx, margin)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "ledger.low_stock", err)
	}
	return levels, nil
}

func (l *Ledger) Movements(ctx context.Context, materialID int64) ([]materials.Movement, error) {
	if _, err := l.Read(ctx, materialID); err != nil {
		return nil, err
	}
	moves, err := l.st.ListMovements(ctx, materialID)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "ledger.movements", err)
	}
	return moves, nil
}
