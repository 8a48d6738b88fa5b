// Package notify delivers engine events to people. Delivery is best effort:
// the engine logs a failed Notify and moves on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRequestCreated   Kind = "request_created"
	KindStateChanged     Kind = "state_changed"
	KindIncidentReported Kind = "incident_reported"
	KindIncidentResolved Kind = "incident_resolved"
	KindStockCorrected   Kind = "stock_corrected"
)

type Event struct {
	ID            uuid.UUID
	Kind          Kind
	RequestID     int64
	IncidentID    int64
	PreviousState string
	NewState      string
	Actor         string
	Observations  string
	At            time.Time
}

func NewEvent(kind Kind, requestID int64, prev, next, actor, observations string, at time.Time) Event {
	return Event{
		ID:            uuid.New(),
		Kind:          kind,
		RequestID:     requestID,
		PreviousState: prev,
		NewState:      next,
		Actor:         actor,
		Observations:  observations,
		At:            at,
	}
}

func (e Event) Subject() string {
	switch e.Kind {
	case KindRequestCreated:
		return fmt.Sprintf("Request #%d created", e.RequestID)
	case KindIncidentReported:
		return fmt.Sprintf("Incident #%d reported on request #%d", e.IncidentID, e.RequestID)
	case KindIncidentResolved:
		return fmt.Sprintf("Incident #%d resolved", e.IncidentID)
	case KindStockCorrected:
		return fmt.Sprintf("Stock corrected for incident #%d", e.IncidentID)
	default:
		return fmt.Sprintf("Request #%d is now %s", e.RequestID, e.NewState)
	}
}

func (e Event) Text() string {
	var b strings.Builder
	b.WriteString(e.Subject())
	b.WriteString("\n")
	if e.PreviousState != "" {
		fmt.Fprintf(&b, "State: %s -> %s\n", e.PreviousState, e.NewState)
	} else if e.NewState != "" {
		fmt.Fprintf(&b, "State: %s\n", e.NewState)
	}
	if e.Actor != "" {
		fmt.Fprintf(&b, "By: %s\n", e.Actor)
	}
	if e.Observations != "" {
		fmt.Fprintf(&b, "Notes: %s\n", e.Observations)
	}
	fmt.Fprintf(&b, "At: %s", e.At.Format(time.RFC3339))
	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Log writes events to the structured log. It never fails.
type Log struct{ log *slog.Logger }

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, ev Event) error {
	l.log.InfoContext(ctx, "event",
		"event_id", ev.ID.String(),
		"kind", string(ev.Kind),
		"request_id", ev.RequestID,
		"incident_id", ev.IncidentID,
		"from", ev.PreviousState,
		"to", ev.NewState,
		"actor", ev.Actor,
	)
	return nil
}

// Multi fans one event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
