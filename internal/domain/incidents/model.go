package incidents

import (
	"fmt"
	"strings"
	"time"
)

type State string

const (
	StateRegistered State = "registered"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
)

func (s State) Valid() bool {
	switch s {
	case StateRegistered, StateAccepted, StateRejected:
		return true
	}
	return false
}

// Type is free text; these are the values the UI offers.
type Type string

const (
	TypeDamage    Type = "damage"
	TypeShortage  Type = "shortage"
	TypeWrongItem Type = "wrong_item"
	TypeLoss      Type = "loss"
)

// Types lists the known incident types in display order.
func Types() []Type {
	return []Type{TypeDamage, TypeShortage, TypeWrongItem, TypeLoss}
}

func NormalizeType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("incident type is required")
	}
	return Type(s), nil
}

type Incident struct {
	ID                int64
	RequestID         int64
	MaterialID        int64
	OfficeID          int64
	Type              Type
	Description       string
	AffectedQuantity  int64
	CorrectedQuantity int64 // stock given back through explicit corrections
	State             State
	Reporter          string
	Resolver          string
	ResolvedAt        *time.Time
	ResolutionComment string
	EvidencePath      string
	CreatedAt         time.Time
}

// Correctable is how much stock may still be put back for this incident.
func (i Incident) Correctable() int64 {
	if i.State != StateAccepted {
		return 0
	}
	return i.AffectedQuantity - i.CorrectedQuantity
}

type Filter struct {
	State     State
	Type      Type
	OfficeID  int64
	RequestID int64
}

func (f Filter) Match(i Incident) bool {
	if f.State != "" && i.State != f.State {
		return false
	}
	if f.Type != "" && i.Type != f.Type {
		return false
	}
	if f.OfficeID != 0 && i.OfficeID != f.OfficeID {
		return false
	}
	if f.RequestID != 0 && i.RequestID != f.RequestID {
		return false
	}
	return true
}

type Statistics struct {
	Total    int64
	Pending  int64
	Resolved int64
	Accepted int64
	Rejected int64
}
