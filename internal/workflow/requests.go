package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/finance"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/ledger"
	"github.com/Spok95/supply-requests/internal/store"
)

// RequestWorkflow creates requests and decides on them.
type RequestWorkflow struct{ d *deps }

type CreateInput struct {
	OfficeID          int64
	MaterialID        int64
	QuantityRequested int64
	PercentageOffice  decimal.Decimal
	Requester         string
	Observation       string
}

func (w *RequestWorkflow) Create(ctx context.Context, in CreateInput) (*requests.Request, error) {
	const op = "create_request"
	d := w.d

	if in.QuantityRequested <= 0 {
		return nil, d.fail(ctx, op, errs.New(errs.KindValidation, op, "quantity requested must be greater than zero"))
	}
	if err := finance.ValidatePercentage(in.PercentageOffice); err != nil {
		return nil, d.fail(ctx, op, errs.New(errs.KindValidation, op, err.Error()))
	}
	if err := required(op, "requester", in.Requester); err != nil {
		return nil, d.fail(ctx, op, err)
	}

	r := &requests.Request{
		OfficeID:          in.OfficeID,
		MaterialID:        in.MaterialID,
		QuantityRequested: in.QuantityRequested,
		State:             requests.StatePending,
		PercentageOffice:  in.PercentageOffice,
		TotalValue:        decimal.Zero,
		OfficeValue:       decimal.Zero,
		HeadquartersValue: decimal.Zero,
		Requester:         strings.TrimSpace(in.Requester),
		Observation:       strings.TrimSpace(in.Observation),
		CreatedAt:         d.now(),
	}
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		office, err := tx.GetOffice(ctx, in.OfficeID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !office.Active) {
			return errs.New(errs.KindValidation, op, "unknown office")
		}
		if err != nil {
			return err
		}
		mat, err := tx.GetMaterial(ctx, in.MaterialID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !mat.Active) {
			return errs.New(errs.KindValidation, op, "unknown material")
		}
		if err != nil {
			return err
		}
		return tx.InsertRequest(ctx, r)
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.transitioned(ctx, r.ID, "", string(r.State), r.Requester)
	d.notify(ctx, notify.NewEvent(notify.KindRequestCreated, r.ID, "", string(r.State), r.Requester, r.Observation, d.now()))
	return r, nil
}

// ApproveFull hands out the whole requested quantity.
func (w *RequestWorkflow) ApproveFull(ctx context.Context, requestID int64, approver string) (*requests.Request, error) {
	return w.approve(ctx, "approve_full", requestID, approver, 0)
}

// ApprovePartial hands out quantity units, strictly less than requested.
func (w *RequestWorkflow) ApprovePartial(ctx context.Context, requestID int64, approver string, quantity int64) (*requests.Request, error) {
	const op = "approve_partial"
	if quantity <= 0 {
		return nil, w.d.fail(ctx, op, errs.New(errs.KindInvalidQuantity, op, "approved quantity must be greater than zero"))
	}
	return w.approve(ctx, op, requestID, approver, quantity)
}

// approve with partial == 0 approves everything.
func (w *RequestWorkflow) approve(ctx context.Context, op string, requestID int64, approver string, partial int64) (*requests.Request, error) {
	d := w.d
	if err := required(op, "approver", approver); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	approver = strings.TrimSpace(approver)

	var (
		r     *requests.Request
		prev  requests.State
		moved materials.Movement
	)
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		prev = r.State

		qty, target := r.QuantityRequested, requests.StateApproved
		if partial > 0 {
			qty, target = partial, requests.StatePartiallyDelivered
		}
		if r.State != requests.StatePending {
			return errs.Newf(errs.KindInvalidState, op, "request is %s, only pending requests can be approved", r.State)
		}
		if err := requests.Transition(r.State, target); err != nil {
			return errs.New(errs.KindInvalidState, op, err.Error())
		}
		if partial > 0 && partial >= r.QuantityRequested {
			return errs.Newf(errs.KindInvalidQuantity, op,
				"partial approval must be below the requested %d, use full approval instead", r.QuantityRequested)
		}

		mat, err := tx.GetMaterial(ctx, r.MaterialID)
		if err != nil {
			return notFoundAs(err, op, "material not found")
		}
		split, err := finance.Calculate(qty, mat.UnitValue, r.PercentageOffice)
		if err != nil {
			return errs.New(errs.KindValidation, op, err.Error())
		}

		moved, err = d.ledger.Decrement(ctx, tx, ledger.Entry{
			MaterialID: r.MaterialID,
			Quantity:   qty,
			Kind:       materials.MoveRequestOut,
			RequestID:  r.ID,
			Actor:      approver,
		})
		if err != nil {
			return err
		}

		now := d.now()
		r.QuantityDelivered = qty
		r.State = target
		r.ApproverID = approver
		r.ApprovedAt = &now
		r.TotalValue = split.Total
		r.OfficeValue = split.Office
		r.HeadquartersValue = split.Headquarters
		r.ValuesComputedAt = &now
		r.LastDeliveryAt = &now

		if err := tx.InsertDelivery(ctx, &requests.Delivery{
			RequestID: r.ID,
			Quantity:  qty,
			User:      approver,
			Note:      string(target),
		}); err != nil {
			return err
		}
		return conflictAs(tx.UpdateRequest(ctx, r, prev), op, "request changed concurrently")
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.ledger.Committed(moved)
	d.transitioned(ctx, r.ID, string(prev), string(r.State), approver)
	d.notify(ctx, notify.NewEvent(notify.KindStateChanged, r.ID, string(prev), string(r.State), approver, r.Observation, d.now()))
	return r, nil
}

// Reject closes a pending request without touching stock.
func (w *RequestWorkflow) Reject(ctx context.Context, requestID int64, approver, reason string) (*requests.Request, error) {
	const op = "reject"
	d := w.d
	if err := required(op, "approver", approver); err != nil {
		return nil, d.fail(ctx, op, err)
	}
	approver = strings.TrimSpace(approver)
	reason = strings.TrimSpace(reason)

	var r *requests.Request
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, requestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		if err := requests.Transition(r.State, requests.StateRejected); err != nil {
			return errs.Newf(errs.KindInvalidState, op, "request is %s, only pending requests can be rejected", r.State)
		}
		now := d.now()
		r.State = requests.StateRejected
		r.ApproverID = approver
		r.ApprovedAt = &now
		if reason != "" {
			if r.Observation != "" {
				r.Observation += "\n"
			}
			r.Observation += "Rejected: " + reason
		}
		return conflictAs(tx.UpdateRequest(ctx, r, requests.StatePending), op, "request changed concurrently")
	})
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}

	d.transitioned(ctx, r.ID, string(requests.StatePending), string(r.State), approver)
	d.notify(ctx, notify.NewEvent(notify.KindStateChanged, r.ID, string(requests.StatePending), string(r.State), approver, reason, d.now()))
	return r, nil
}

func (w *RequestWorkflow) GetRequest(ctx context.Context, id int64) (*requests.Request, error) {
	const op = "get_request"
	r, err := w.d.st.GetRequest(ctx, id)
	if err != nil {
		return nil, w.d.fail(ctx, op, notFoundAs(err, op, "request not found"))
	}
	return r, nil
}

// ListRequests returns matching requests, newest first.
func (w *RequestWorkflow) ListRequests(ctx context.Context, f requests.Filter) ([]requests.Request, error) {
	const op = "list_requests"
	if f.State != "" && !f.State.Valid() {
		return nil, w.d.fail(ctx, op, errs.Newf(errs.KindValidation, op, "unknown state %q", f.State))
	}
	list, err := w.d.st.ListRequests(ctx, f)
	if err != nil {
		return nil, w.d.fail(ctx, op, err)
	}
	return list, nil
}

func (w *RequestWorkflow) Deliveries(ctx context.Context, requestID int64) ([]requests.Delivery, error) {
	const op = "list_deliveries"
	if _, err := w.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	list, err := w.d.st.ListDeliveries(ctx, requestID)
	if err != nil {
		return nil, w.d.fail(ctx, op, err)
	}
	return list, nil
}

// MaterialStatistics aggregates requests of one material. Read only.
func (w *RequestWorkflow) MaterialStatistics(ctx context.Context, materialID int64) (requests.Statistics, error) {
	const op = "get_statistics"
	if _, err := w.d.st.GetMaterial(ctx, materialID); err != nil {
		return requests.Statistics{}, w.d.fail(ctx, op, notFoundAs(err, op, "material not found"))
	}
	st, err := w.d.st.RequestStatistics(ctx, materialID)
	if err != nil {
		return requests.Statistics{}, w.d.fail(ctx, op, err)
	}
	return st, nil
}
