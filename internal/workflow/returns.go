package workflow

import (
	"context"
	"strings"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/ledger"
	"github.com/Spok95/supply-requests/internal/store"
)

// ReturnProcessor takes delivered goods back into stock.
type ReturnProcessor struct{ d *deps }

type ReturnInput struct {
	RequestID   int64
	Quantity    int64
	User        string
	Observation string
	Condition   requests.Condition // good when empty
}

func (p *ReturnProcessor) RegisterReturn(ctx context.Context, in ReturnInput) (*requests.Return, *requests.Request, error) {
	const op = "register_return"
	d := p.d

	if in.Quantity <= 0 {
		return nil, nil, d.fail(ctx, op, errs.New(errs.KindInvalidQuantity, op, "returned quantity must be greater than zero"))
	}
	if err := required(op, "user", in.User); err != nil {
		return nil, nil, d.fail(ctx, op, err)
	}
	cond := requests.Condition(strings.ToLower(strings.TrimSpace(string(in.Condition))))
	switch cond {
	case "":
		cond = requests.ConditionGood
	case requests.ConditionGood, requests.ConditionDamaged:
	default:
		return nil, nil, d.fail(ctx, op, errs.Newf(errs.KindValidation, op, "unknown condition %q", in.Condition))
	}
	user := strings.TrimSpace(in.User)

	var (
		r     *requests.Request
		ret   *requests.Return
		prev  requests.State
		moved materials.Movement
	)
	err := d.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.LockRequest(ctx, in.RequestID)
		if err != nil {
			return notFoundAs(err, op, "request not found")
		}
		prev = r.State
		if !r.State.Delivered() {
			return errs.Newf(errs.KindInvalidState, op, "request is %s, nothing can be returned", r.State)
		}

		already, err := tx.ReturnedQuantity(ctx, r.ID)
		if err != nil {
			return err
		}
		if outstanding := r.QuantityDelivered - already; in.Quantity > outstanding {
			return errs.Newf(errs.KindInvalidQuantity, op,
				"cannot return %d, only %d of %d delivered units are still out", in.Quantity, outstanding, r.QuantityDelivered)
		}

		now := d.now()
		ret = &requests.Return{
			RequestID:        r.ID,
			MaterialID:       r.MaterialID,
			QuantityReturned: in.Quantity,
			CreatedAt:        now,
			User:             user,
			Observation:      strings.TrimSpace(in.Observation),
			Condition:        cond,
		}
		if err := tx.InsertReturn(ctx, ret); err != nil {
			return err
		}
		moved, err = d.ledger.Increment(ctx, tx, ledger.Entry{
			MaterialID: r.MaterialID,
			Quantity:   in.Quantity,
			Kind:       materials.MoveReturnIn,
			RequestID:  r.ID,
			Actor:      user,
			Note:       string(cond),
		})
		if err != nil {
			return err
		}

		r.LastDeliveryAt = &now
		if already+in.Quantity == r.QuantityDelivered {
			if err := requests.Transition(r.State, requests.StateCompleted); err != nil {
				return errs.New(errs.KindInvalidState, op, err.Error())
			}
			r.State = requests.StateCompleted
		}
		return conflictAs(tx.UpdateRequest(ctx, r, prev), op, "request changed concurrently")
	})
	if err != nil {
		return nil, nil, d.fail(ctx, op, err)
	}

	d.ledger.Committed(moved)
	d.log.InfoContext(ctx, "return registered", "request_id", r.ID, "quantity", in.Quantity, "user", user)
	if r.State != prev {
		d.transitioned(ctx, r.ID, string(prev), string(r.State), user)
		d.notify(ctx, notify.NewEvent(notify.KindStateChanged, r.ID, string(prev), string(r.State), user, ret.Observation, d.now()))
	}
	return ret, r, nil
}

// ReturnInfo tells how much of a request can still be returned and, when
// nothing can, why.
func (p *ReturnProcessor) ReturnInfo(ctx context.Context, requestID int64) (requests.ReturnInfo, error) {
	const op = "return_info"
	d := p.d
	r, err := d.st.GetRequest(ctx, requestID)
	if err != nil {
		return requests.ReturnInfo{}, d.fail(ctx, op, notFoundAs(err, op, "request not found"))
	}
	already, err := d.st.ReturnedQuantity(ctx, requestID)
	if err != nil {
		return requests.ReturnInfo{}, d.fail(ctx, op, err)
	}

	info := requests.ReturnInfo{
		RequestID:         r.ID,
		State:             r.State,
		QuantityRequested: r.QuantityRequested,
		QuantityDelivered: r.QuantityDelivered,
		AlreadyReturned:   already,
		Returnable:        r.QuantityDelivered - already,
	}
	switch {
	case !r.State.Delivered():
		info.Reason = "request is " + string(r.State)
	case info.Returnable <= 0:
		info.Reason = "everything delivered has been returned"
	default:
		info.CanReturn = true
	}
	return info, nil
}

// ListReturns returns the returns of a request, newest first.
func (p *ReturnProcessor) ListReturns(ctx context.Context, requestID int64) ([]requests.Return, error) {
	const op = "list_returns"
	d := p.d
	if _, err := d.st.GetRequest(ctx, requestID); err != nil {
		return nil, d.fail(ctx, op, notFoundAs(err, op, "request not found"))
	}
	list, err := d.st.ListReturns(ctx, requestID)
	if err != nil {
		return nil, d.fail(ctx, op, err)
	}
	return list, nil
}
