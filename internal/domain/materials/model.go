package materials

import (
	"time"

	"github.com/shopspring/decimal"
)

type Material struct {
	ID                int64
	Name              string
	UnitValue         decimal.Decimal
	QuantityAvailable int64
	MinimumQuantity   int64
	OfficeID          int64 // owning office
	Active            bool
	CreatedAt         time.Time
}

// StockLevel is the lock-free view served to low-stock reporting.
type StockLevel struct {
	MaterialID        int64
	Name              string
	OfficeID          int64
	QuantityAvailable int64
	MinimumQuantity   int64
}

// Low reports whether the level sits at or under the reorder threshold
// widened by margin.
func (l StockLevel) Low(margin int64) bool {
	return l.QuantityAvailable <= l.MinimumQuantity+margin
}

type MoveKind string

const (
	MoveRequestOut         MoveKind = "request_out"
	MoveReturnIn           MoveKind = "return_in"
	MoveIncidentCorrection MoveKind = "incident_correction_in"
)

// Movement is the append-only trail of every ledger mutation.
type Movement struct {
	ID         int64
	MaterialID int64
	Delta      int64 // >0 in, <0 out
	Kind       MoveKind
	RequestID  int64
	IncidentID int64
	Actor      string
	Note       string
	CreatedAt  time.Time
}
