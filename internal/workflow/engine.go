// Package workflow drives material requests through their lifecycle. Every
// mutating call runs in one store transaction: stock, request and history
// rows commit together or not at all. Notifications go out after commit.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/infra/metrics"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/ledger"
	"github.com/Spok95/supply-requests/internal/store"
)

type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Notifier       notify.Notifier
	NotifyTimeout  time.Duration
	LowStockMargin int64
	Now            func() time.Time
}

type deps struct {
	st            store.Store
	ledger        *ledger.Ledger
	log           *slog.Logger
	metrics       *metrics.Metrics
	notifier      notify.Notifier
	notifyTimeout time.Duration
	lowStock      int64
	now           func() time.Time
}

// Engine is the surface exposed to upstream callers.
type Engine struct {
	*RequestWorkflow
	*ReturnProcessor
	*IncidentTracker
	d *deps
}

func New(st store.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &deps{
		st:            st,
		ledger:        ledger.New(st, opts.Metrics),
		log:           opts.Logger.With("component", "workflow"),
		metrics:       opts.Metrics,
		notifier:      opts.Notifier,
		notifyTimeout: opts.NotifyTimeout,
		lowStock:      opts.LowStockMargin,
		now:           opts.Now,
	}
	return &Engine{
		RequestWorkflow: &RequestWorkflow{d},
		ReturnProcessor: &ReturnProcessor{d},
		IncidentTracker: &IncidentTracker{d},
		d:               d,
	}
}

// Ledger exposes stock reads for reporting.
func (e *Engine) Ledger() *ledger.Ledger { return e.d.ledger }

func (e *Engine) LowStockMargin() int64 { return e.d.lowStock }

// Ping reports whether the store is reachable.
func (e *Engine) Ping(ctx context.Context) error { return e.d.st.Ping(ctx) }

// fail classifies err, counts it and logs it. Unclassified errors come from
// the store and turn into persistence errors.
func (d *deps) fail(ctx context.Context, op string, err error) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		err = errs.Wrap(errs.KindPersistence, op, err)
	}
	kind := errs.KindOf(err)
	d.metrics.Failure(op, string(kind))
	if kind == errs.KindPersistence {
		d.log.ErrorContext(ctx, "operation failed", "op", op, "err", err)
	} else {
		d.log.DebugContext(ctx, "operation refused", "op", op, "kind", string(kind), "err", err)
	}
	return err
}

func (d *deps) notify(ctx context.Context, ev notify.Event) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(nctx, ev); err != nil {
		d.log.WarnContext(ctx, "notification failed",
			"event_id", ev.ID.String(),
			"kind", string(ev.Kind),
			"request_id", ev.RequestID,
			"err", err,
		)
	}
}

func (d *deps) transitioned(ctx context.Context, requestID int64, from, to, actor string) {
	d.metrics.Transition(from, to)
	d.log.InfoContext(ctx, "request transition",
		"request_id", requestID,
		"from", from,
		"to", to,
		"actor", actor,
	)
}

func notFoundAs(err error, op, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return errs.New(errs.KindNotFound, op, msg)
	}
	return err
}

func conflictAs(err error, op, msg string) error {
	if errors.Is(err, store.ErrStateConflict) {
		return errs.New(errs.KindInvalidState, op, msg)
	}
	return err
}

func required(op, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errs.Newf(errs.KindValidation, op, "%s is required", field)
	}
	return nil
}
