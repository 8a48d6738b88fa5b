package workflow

import (
	"context"
	"strings"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/ledger"
	"github.com/Spok95/supply-requests/internal/store"
)

// IncidentTracker records problems with delivered goods and their resolution.
type IncidentTracker struct{ d *deps }

type IncidentInput struct {
	RequestID        int64
	Type             string
	Description      string
	AffectedQuantity int64
	Reporter         string
	EvidencePath     string
}

func (t *IncidentTracker) RegisterIncident(ctx context.Context, in IncidentInput) (*incidents.Incident, error) {
	const op = "register_incident"
	d := t.d

	typ, err := incidents.NormalizeType(in.Type)
	if err != nil {
		return nil, d.fail(ctx, op, errs.New(errs.KindValidation, op, err.Error()))
	}
	if err := required(op, "description", in.Description); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	if err := required(op, "reporter", in.Reporter); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	if in.AffectedQuantity <= 0 {
		return nil, d.fail(ctx, op, errs.New(errs.KindInvalidQuantity, op, "affected quantity must be greater than zero"))
	}
	reporter := strings.TrimSpace(in.Reporter)

	var (
		inc  *incidents.Incident
		prev requests.State
	)
	err = d.st.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.LockRequest(ctx, in.RequestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		prev = r.State
		if !r.State.Delivered() {
			return errs.Newf(errs.KindInvalidState, op, "request is %s, incidents need a delivered request", r.State)
		}
		open, err := tx.OpenIncidentForRequest(ctx, r.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return errs.Newf(errs.KindInvalidState, op, "incident %d is still open for this request", open.ID)
		}
		if in.AffectedQuantity > r.QuantityDelivered {
			return errs.Newf(errs.KindInvalidQuantity, op,
				"affected quantity %d exceeds the %d delivered", in.AffectedQuantity, r.QuantityDelivered)
		}
		if err := requests.Transition(r.State, requests.StateIncidentReported); err != nil {
			return errs.New(errs.KindInvalidState, op, err.Error())
		}

		inc = &incidents.Incident{
			RequestID:        r.ID,
			MaterialID:       r.MaterialID,
			OfficeID:         r.OfficeID,
			Type:             typ,
			Description:      strings.TrimSpace(in.Description),
			AffectedQuantity: in.AffectedQuantity,
			State:            incidents.StateRegistered,
			Reporter:         reporter,
			EvidencePath:     strings.TrimSpace(in.EvidencePath),
			CreatedAt:        d.now(),
		}
		if err := tx.InsertIncident(ctx, inc); err != nil {
			return conflictAs(err, op, "an incident is already open for this request")
		}

		r.HasIncident = true
		r.State = requests.StateIncidentReported
		return conflictAs(tx.UpdateRequest(ctx, r, prev), op, "request changed concurrently")
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.transitioned(ctx, inc.RequestID, string(prev), string(requests.StateIncidentReported), reporter)
	ev := notify.NewEvent(notify.KindIncidentReported, inc.RequestID, string(prev), string(requests.StateIncidentReported), reporter, inc.Description, d.now())
	ev.IncidentID = inc.ID
	d.notify(ctx, ev)
	return inc, nil
}

// ResolveIncident accepts or rejects a registered incident exactly once. The
// parent request follows. Stock is never touched here, see CorrectStock.
func (t *IncidentTracker) ResolveIncident(ctx context.Context, incidentID int64, accept bool, resolver, comment string) (*incidents.Incident, error) {
	const op = "resolve_incident"
	d := t.d
	if err := required(op, "resolver", resolver); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	resolver = strings.TrimSpace(resolver)

	target, reqTarget := incidents.StateRejected, requests.StateIncidentRejected
	if accept {
		target, reqTarget = incidents.StateAccepted, requests.StateIncidentAccepted
	}

	var (
		inc  *incidents.Incident
		prev requests.State
	)
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		inc, err = tx.LockIncident(ctx, incidentID)
		if err != nil {
			return notFoundAs(err, op, "incident not found")
		}
		if inc.State != incidents.StateRegistered {
			return errs.Newf(errs.KindInvalidState, op, "incident is already %s", inc.State)
		}

		r, err := tx.LockRequest(ctx, inc.RequestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		prev = r.State
		if err := requests.Transition(r.State, reqTarget); err != nil {
			return errs.New(errs.KindInvalidState, op, err.Error())
		}

		now := d.now()
		inc.State = target
		inc.Resolver = resolver
		inc.ResolvedAt = &now
		inc.ResolutionComment = strings.TrimSpace(comment)
		if err := tx.UpdateIncident(ctx, inc, incidents.StateRegistered); err != nil {
			return conflictAs(err, op, "incident changed concurrently")
		}

		r.State = reqTarget
		return conflictAs(tx.UpdateRequest(ctx, r, prev), op, "request changed concurrently")
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.transitioned(ctx, inc.RequestID, string(prev), string(reqTarget), resolver)
	ev := notify.NewEvent(notify.KindIncidentResolved, inc.RequestID, string(prev), string(reqTarget), resolver, inc.ResolutionComment, d.now())
	ev.IncidentID = inc.ID
	d.notify(ctx, ev)
	return inc, nil
}

// CorrectStock puts quantity units of an accepted incident back into stock.
// It may be called several times until the affected quantity is used up.
func (t *IncidentTracker) CorrectStock(ctx context.Context, incidentID, quantity int64, actor, note string) (*incidents.Incident, error) {
	const op = "correct_stock"
	d := t.d
	if quantity <= 0 {
		return nil, d.fail(ctx, op, errs.New(errs.KindInvalidQuantity, op, "quantity must be greater than zero"))
	}
	if err := required(op, "actor", actor); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	actor = strings.TrimSpace(actor)
	note = strings.TrimSpace(note)

	var (
		inc   *incidents.Incident
		moved materials.Movement
	)
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		inc, err = tx.LockIncident(ctx, incidentID)
		if err != nil {
			return notFoundAs(err, op, "incident not found")
		}
		if inc.State != incidents.StateAccepted {
			return errs.Newf(errs.KindInvalidState, op, "incident is %s, only accepted incidents can correct stock", inc.State)
		}
		// units already back in stock through returns or earlier corrections
		// cannot be restocked again
		req, err := tx.LockRequest(ctx, inc.RequestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		returned, err := tx.ReturnedQuantity(ctx, req.ID)
		if err != nil {
			return err
		}
		corrected, err := tx.CorrectedQuantity(ctx, req.ID)
		if err != nil {
			return err
		}
		left := min(inc.Correctable(), req.QuantityDelivered-returned-corrected)
		if quantity > left {
			return errs.Newf(errs.KindInvalidQuantity, op, "only %d units can still be corrected", max(left, 0))
		}

		moved, err = d.ledger.Increment(ctx, tx, ledger.Entry{
			MaterialID: inc.MaterialID,
			Quantity:   quantity,
			Kind:       materials.MoveIncidentCorrection,
			RequestID:  inc.RequestID,
			IncidentID: inc.ID,
			Actor:      actor,
			Note:       note,
		})
		if err != nil {
			return err
		}
		inc.CorrectedQuantity += quantity
		return conflictAs(tx.UpdateIncident(ctx, inc, incidents.StateAccepted), op, "incident changed concurrently")
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.ledger.Committed(moved)
	d.log.InfoContext(ctx, "stock corrected",
		"incident_id", inc.ID,
		"material_id", inc.MaterialID,
		"quantity", quantity,
		"actor", actor,
	)
	ev := notify.NewEvent(notify.KindStockCorrected, inc.RequestID, "", string(inc.State), actor, note, d.now())
	ev.IncidentID = inc.ID
	d.notify(ctx, ev)
	return inc, nil
}

func (t *IncidentTracker) GetIncident(ctx context.Context, id int64) (*incidents.Incident, error) {
	const op = "get_incident"
	inc, err := t.d.st.GetIncident(ctx, id)
	if err != nil {
		return nil, t.d.fail(ctx, op, notFoundAs(err, op, "incident not found"))
	}
	return inc, nil
}

// GetPending lists registered incidents matching f, newest first. f.State is
// ignored.
func (t *IncidentTracker) GetPending(ctx context.Context, f incidents.Filter) ([]incidents.Incident, error) {
	const op = "get_pending"
	f.State = incidents.StateRegistered
	if f.Type != "" {
		typ, err := incidents.NormalizeType(string(f.Type))
		if err != nil {
			return nil, t.d.fail(ctx, op, errs.New(errs.KindValidation, op, err.Error()))
		}
		f.Type = typ
	}
	list, err := t.d.st.ListIncidents(ctx, f)
	if err != nil {
		return nil, t.d.fail(ctx, op, err)
	}
	return list, nil
}

// ListIncidents lists incidents in any state matching f, newest first.
func (t *IncidentTracker) ListIncidents(ctx context.Context, f incidents.Filter) ([]incidents.Incident, error) {
	const op = "list_incidents"
	if f.State != "" && !f.State.Valid() {
		return nil, t.d.fail(ctx, op, errs.Newf(errs.KindValidation, op, "unknown incident state %q", f.State))
	}
	if f.Type != "" {
		typ, err := incidents.NormalizeType(string(f.Type))
		if err != nil {
			return nil, t.d.fail(ctx, op, errs.New(errs.KindValidation, op, err.Error()))
		}
		f.Type = typ
	}
	list, err := t.d.st.ListIncidents(ctx, f)
	if err != nil {
		return nil, t.d.fail(ctx, op, err)
	}
	return list, nil
}

func (t *IncidentTracker) IncidentsForRequest(ctx context.Context, requestID int64) ([]incidents.Incident, error) {
	const op = "incidents_for_request"
	if _, err := t.d.st.GetRequest(ctx, requestID); err != nil {
		return nil, t.d.fail(ctx, op, notFoundAs(err, op, "request not found"))
	}
	list, err := t.d.st.ListIncidents(ctx, incidents.Filter{RequestID: requestID})
	if err != nil {
		return nil, t.d.fail(ctx, op, err)
	}
	return list, nil
}

func (t *IncidentTracker) IncidentStatistics(ctx context.Context) (incidents.Statistics, error) {
	st, err := t.d.st.IncidentStatistics(ctx)
	if err != nil {
		return incidents.Statistics{}, t.d.fail(ctx, "incident_statistics", err)
	}
	return st, nil
}
