package requests

import (
	"time"

	"github.com/shopspring/decimal"
)

type Request struct {
	ID                int64
	OfficeID          int64
	MaterialID        int64
	QuantityRequested int64
	QuantityDelivered int64
	State             State
	ApproverID        string // empty until approved or rejected
	ApprovedAt        *time.Time
	PercentageOffice  decimal.Decimal
	TotalValue        decimal.Decimal
	OfficeValue       decimal.Decimal
	HeadquartersValue decimal.Decimal
	ValuesComputedAt  *time.Time
	Requester         string
	Observation       string
	HasIncident       bool
	LastDeliveryAt    *time.Time
	CreatedAt         time.Time
}

type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionDamaged Condition = "damaged"
)

// Return is append-only.
type Return struct {
	ID               int64
	RequestID        int64
	MaterialID       int64
	QuantityReturned int64
	CreatedAt        time.Time
	User             string
	Observation      string
	Condition        Condition
}

// Delivery records each quantity handed out on approval.
type Delivery struct {
	ID        int64
	RequestID int64
	Quantity  int64
	User      string
	Note      string
	CreatedAt time.Time
}

// ReturnInfo summarises how much of a request can still be returned.
type ReturnInfo struct {
	RequestID         int64
	State             State
	QuantityRequested int64
	QuantityDelivered int64
	AlreadyReturned   int64
	Returnable        int64
	CanReturn         bool
	Reason            string
}

// Statistics aggregates the requests of one material.
type Statistics struct {
	MaterialID         int64
	Total              int64
	Pending            int64
	Approved           int64
	PartiallyDelivered int64
	Rejected           int64
	Completed          int64
	WithIncident       int64
	TotalDelivered     int64
	TotalReturned      int64
}

type Filter struct {
	State      State
	OfficeID   int64
	MaterialID int64
	Requester  string
}

func (f Filter) Match(r Request) bool {
	if f.State != "" && r.State != f.State {
		return false
	}
	if f.OfficeID != 0 && r.OfficeID != f.OfficeID {
		return false
	}
	if f.MaterialID != 0 && r.MaterialID != f.MaterialID {
		return false
	}
	if f.Requester != "" && r.Requester != f.Requester {
		return false
	}
	return true
}
