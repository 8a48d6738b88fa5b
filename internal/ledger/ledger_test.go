package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/infra/metrics"
	"github.com/Spok95/supply-requests/internal/store"
	"github.com/Spok95/supply-requests/internal/store/memory"
)

func setup(t *testing.T, qty int64) (*Ledger, *memory.Store, int64) {
	t.Helper()
	st := memory.New()
	m := st.AddMaterial(materials.Material{Name: "toner", QuantityAvailable: qty, MinimumQuantity: 3, Active: true})
	return New(st, nil), st, m.ID
}

func TestDecrement(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		stock     int64
		qty       int64
		wantKind  errs.Kind
		wantStock int64
	}{
		{"exact", 10, 10, "", 0},
		{"partial", 10, 4, "", 6},
		{"too much", 3, 4, errs.KindInsufficientStock, 3},
		{"zero", 3, 0, errs.KindInvalidQuantity, 3},
		{"negative", 3, -1, errs.KindInvalidQuantity, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, st, id := setup(t, tt.stock)
			err := st.InTx(ctx, func(tx store.Tx) error {
				_, err := l.Decrement(ctx, tx, Entry{MaterialID: id, Quantity: tt.qty, RequestID: 7, Actor: "boss"})
				return err
			})
			if tt.wantKind == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantKind != "" && !errs.Is(err, tt.wantKind) {
				t.Fatalf("Expected %s, got %v", tt.wantKind, err)
			}
			lvl, err := l.Read(ctx, id)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if lvl.QuantityAvailable != tt.wantStock {
				t.Fatalf("Expected stock %d, got %d", tt.wantStock, lvl.QuantityAvailable)
			}
		})
	}
}

func TestIncrementRecordsMovement(t *testing.T) {
	ctx := context.Background()
	l, st, id := setup(t, 1)

	err := st.InTx(ctx, func(tx store.Tx) error {
		_, err := l.Increment(ctx, tx, Entry{MaterialID: id, Quantity: 5, RequestID: 9, Actor: "ana", Note: "return"})
		return err
	})
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	moves, err := l.Movements(ctx, id)
	if err != nil {
		t.Fatalf("Movements: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("Expected 1 movement, got %d", len(moves))
	}
	mv := moves[0]
	if mv.Delta != 5 || mv.Kind != materials.MoveReturnIn || mv.RequestID != 9 || mv.Actor != "ana" {
		t.Fatalf("unexpected movement %+v", mv)
	}

	err = st.InTx(ctx, func(tx store.Tx) error {
		_, err := l.Increment(ctx, tx, Entry{MaterialID: id + 100, Quantity: 1})
		return err
	})
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("Expected not_found for unknown material, got %v", err)
	}
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	ctx := context.Background()
	l, st, id := setup(t, 10)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.InTx(ctx, func(tx store.Tx) error {
				_, err := l.Decrement(ctx, tx, Entry{MaterialID: id, Quantity: 1})
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 10 {
		t.Fatalf("Expected exactly 10 successful decrements, got %d", ok)
	}
	lvl, _ := l.Read(ctx, id)
	if lvl.QuantityAvailable != 0 {
		t.Fatalf("Expected stock 0, got %d", lvl.QuantityAvailable)
	}
}

func TestCommittedFeedsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := New(memory.New(), metrics.New(reg))

	l.Committed(
		materials.Movement{Kind: materials.MoveRequestOut, Delta: -4},
		materials.Movement{Kind: materials.MoveReturnIn, Delta: 2},
	)

	const want = `
# HELP stock_units_moved_total Units moved by the stock ledger.
# TYPE stock_units_moved_total counter
stock_units_moved_total{kind="request_out"} 4
stock_units_moved_total{kind="return_in"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "stock_units_moved_total"); err != nil {
		t.Fatal(err)
	}
}

func TestLowStockAndReadNotFound(t *testing.T) {
	ctx := context.Background()
	l, _, id := setup(t, 3)

	low, err := l.LowStock(ctx, 0)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 1 || low[0].MaterialID != id {
		t.Fatalf("Expected material %d to be low, got %+v", id, low)
	}
	if _, err := l.Read(ctx, id+1); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}
