package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/supply-requests/internal/domain/errs"
	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/offices"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/notify"
	"github.com/Spok95/supply-requests/internal/store/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	eng      *Engine
	st       *memory.Store
	rec      *recorder
	office   offices.Office
	material materials.Material
}

func newFixture(t *testing.T, stock int64, unitValue string) *fixture {
	t.Helper()
	st := memory.New()
	clock := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return clock })

	office := st.AddOffice(offices.Office{Name: "North", Active: true})
	mat := st.AddMaterial(materials.Material{
		Name:              "paper",
		UnitValue:         decimal.RequireFromString(unitValue),
		QuantityAvailable: stock,
		MinimumQuantity:   2,
		OfficeID:          office.ID,
		Active:            true,
	})
	rec := &recorder{}
	eng := New(st, Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier: rec,
		Now:      func() time.Time { return clock },
	})
	return &fixture{eng: eng, st: st, rec: rec, office: office, material: mat}
}

func (f *fixture) create(t *testing.T, qty int64) *requests.Request {
	t.Helper()
	r, err := f.eng.Create(context.Background(), CreateInput{
		OfficeID:          f.office.ID,
		MaterialID:        f.material.ID,
		QuantityRequested: qty,
		PercentageOffice:  decimal.NewFromInt(30),
		Requester:         "ana",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func (f *fixture) stock(t *testing.T) int64 {
	t.Helper()
	lvl, err := f.eng.Ledger().Read(context.Background(), f.material.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return lvl.QuantityAvailable
}

func wantKind(t *testing.T, err error, kind errs.Kind) {
	t.Helper()
	if !errs.Is(err, kind) {
		t.Fatalf("Expected %s error, got %v", kind, err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"zero quantity", CreateInput{OfficeID: f.office.ID, MaterialID: f.material.ID, QuantityRequested: 0, PercentageOffice: decimal.Zero, Requester: "ana"}},
		{"unknown material", CreateInput{OfficeID: f.office.ID, MaterialID: 999, QuantityRequested: 1, PercentageOffice: decimal.Zero, Requester: "ana"}},
		{"unknown office", CreateInput{OfficeID: 999, MaterialID: f.material.ID, QuantityRequested: 1, PercentageOffice: decimal.Zero, Requester: "ana"}},
		{"percentage above 100", CreateInput{OfficeID: f.office.ID, MaterialID: f.material.ID, QuantityRequested: 1, PercentageOffice: decimal.NewFromInt(101), Requester: "ana"}},
		{"missing requester", CreateInput{OfficeID: f.office.ID, MaterialID: f.material.ID, QuantityRequested: 1, PercentageOffice: decimal.Zero, Requester: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Create(ctx, tt.in)
			wantKind(t, err, errs.KindValidation)
		})
	}

	r := f.create(t, 3)
	if r.State != requests.StatePending || r.ID == 0 {
		t.Fatalf("unexpected new request %+v", r)
	}
	ev := f.rec.last()
	if ev.Kind != notify.KindRequestCreated || ev.PreviousState != "" || ev.NewState != "PENDING" {
		t.Fatalf("unexpected creation event %+v", ev)
	}
}

// A and B
func TestApproveFullThenInsufficientStock(t *testing.T) {
	f := newFixture(t, 10, "2.50")
	ctx := context.Background()

	first := f.create(t, 10)
	r, err := f.eng.ApproveFull(ctx, first.ID, "boss")
	if err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	if r.State != requests.StateApproved || r.QuantityDelivered != 10 || r.ApproverID != "boss" || r.ApprovedAt == nil {
		t.Fatalf("unexpected approved request %+v", r)
	}
	if !r.TotalValue.Equal(decimal.NewFromInt(25)) || !r.OfficeValue.Add(r.HeadquartersValue).Equal(r.TotalValue) {
		t.Fatalf("unexpected split total=%s office=%s hq=%s", r.TotalValue, r.OfficeValue, r.HeadquartersValue)
	}
	if got := f.stock(t); got != 0 {
		t.Fatalf("Expected stock 0, got %d", got)
	}

	second := f.create(t, 5)
	_, err = f.eng.ApproveFull(ctx, second.ID, "boss")
	wantKind(t, err, errs.KindInsufficientStock)
	if got := f.stock(t); got != 0 {
		t.Fatalf("Expected stock unchanged at 0, got %d", got)
	}
	after, _ := f.eng.GetRequest(ctx, second.ID)
	if after.State != requests.StatePending || after.QuantityDelivered != 0 {
		t.Fatalf("Expected untouched pending request, got %+v", after)
	}

	deliveries, err := f.eng.Deliveries(ctx, first.ID)
	if err != nil || len(deliveries) != 1 || deliveries[0].Quantity != 10 {
		t.Fatalf("Expected one delivery of 10, got %+v (%v)", deliveries, err)
	}
	moves, _ := f.eng.Ledger().Movements(ctx, f.material.ID)
	if len(moves) != 1 || moves[0].Delta != -10 || moves[0].RequestID != first.ID {
		t.Fatalf("unexpected movements %+v", moves)
	}
}

// C
func TestApprovePartial(t *testing.T) {
	f := newFixture(t, 20, "1")
	ctx := context.Background()
	r := f.create(t, 10)

	for _, qty := range []int64{10, 11} {
		_, err := f.eng.ApprovePartial(ctx, r.ID, "boss", qty)
		wantKind(t, err, errs.KindInvalidQuantity)
	}
	_, err := f.eng.ApprovePartial(ctx, r.ID, "boss", 0)
	wantKind(t, err, errs.KindInvalidQuantity)

	got, err := f.eng.ApprovePartial(ctx, r.ID, "boss", 4)
	if err != nil {
		t.Fatalf("ApprovePartial: %v", err)
	}
	if got.State != requests.StatePartiallyDelivered || got.QuantityDelivered != 4 {
		t.Fatalf("unexpected request %+v", got)
	}
	if !got.TotalValue.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("Expected split on approved quantity, total=%s", got.TotalValue)
	}
	if s := f.stock(t); s != 16 {
		t.Fatalf("Expected stock 16, got %d", s)
	}
}

func TestApprovePartialInsufficientStock(t *testing.T) {
	f := newFixture(t, 3, "1")
	r := f.create(t, 10)
	_, err := f.eng.ApprovePartial(context.Background(), r.ID, "boss", 4)
	wantKind(t, err, errs.KindInsufficientStock)
	if s := f.stock(t); s != 3 {
		t.Fatalf("Expected stock 3, got %d", s)
	}
}

func TestRejectTwice(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 2)

	got, err := f.eng.Reject(ctx, r.ID, "boss", "not needed")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.State != requests.StateRejected || got.ApproverID != "boss" {
		t.Fatalf("unexpected rejected request %+v", got)
	}
	events := len(f.rec.events)

	_, err = f.eng.Reject(ctx, r.ID, "boss", "again")
	wantKind(t, err, errs.KindInvalidState)
	if len(f.rec.events) != events {
		t.Fatal("second reject must not notify")
	}
	again, _ := f.eng.GetRequest(ctx, r.ID)
	if again.Observation != "Rejected: not needed" {
		t.Fatalf("second reject changed the request: %q", again.Observation)
	}
	if s := f.stock(t); s != 10 {
		t.Fatalf("reject must not touch stock, got %d", s)
	}

	_, err = f.eng.ApproveFull(ctx, r.ID, "boss")
	wantKind(t, err, errs.KindInvalidState)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()

	_, err := f.eng.ApproveFull(ctx, 404, "boss")
	wantKind(t, err, errs.KindNotFound)
	_, err = f.eng.Reject(ctx, 404, "boss", "")
	wantKind(t, err, errs.KindNotFound)
	_, _, err = f.eng.RegisterReturn(ctx, ReturnInput{RequestID: 404, Quantity: 1, User: "ana"})
	wantKind(t, err, errs.KindNotFound)
	_, err = f.eng.ResolveIncident(ctx, 404, true, "boss", "")
	wantKind(t, err, errs.KindNotFound)
	_, err = f.eng.MaterialStatistics(ctx, 404)
	wantKind(t, err, errs.KindNotFound)
}

// E
func TestReturnsUpToDelivered(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 10)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}

	_, got, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 6, User: "ana"})
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if got.State != requests.StateApproved {
		t.Fatalf("Expected APPROVED after partial return, got %s", got.State)
	}

	_, _, err = f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 5, User: "ana"})
	wantKind(t, err, errs.KindInvalidQuantity)

	info, err := f.eng.ReturnInfo(ctx, r.ID)
	if err != nil {
		t.Fatalf("ReturnInfo: %v", err)
	}
	if info.AlreadyReturned != 6 || info.Returnable != 4 || !info.CanReturn {
		t.Fatalf("unexpected info %+v", info)
	}

	ret, got, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 4, User: "ana", Condition: "DAMAGED"})
	if err != nil {
		t.Fatalf("last return: %v", err)
	}
	if got.State != requests.StateCompleted {
		t.Fatalf("Expected COMPLETED, got %s", got.State)
	}
	if ret.Condition != requests.ConditionDamaged {
		t.Fatalf("Expected damaged condition, got %s", ret.Condition)
	}
	if s := f.stock(t); s != 10 {
		t.Fatalf("Expected stock back at 10, got %d", s)
	}

	list, err := f.eng.ListReturns(ctx, r.ID)
	if err != nil || len(list) != 2 || list[0].QuantityReturned != 4 {
		t.Fatalf("Expected newest-first returns, got %+v (%v)", list, err)
	}

	info, _ = f.eng.ReturnInfo(ctx, r.ID)
	if info.CanReturn || info.Reason == "" {
		t.Fatalf("Expected no further returns, got %+v", info)
	}
	_, _, err = f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 1, User: "ana"})
	wantKind(t, err, errs.KindInvalidState)
}

func TestReturnValidation(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 2)

	_, _, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 1, User: "ana"})
	wantKind(t, err, errs.KindInvalidState)
	_, _, err = f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 0, User: "ana"})
	wantKind(t, err, errs.KindInvalidQuantity)
	_, _, err = f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 1, User: "ana", Condition: "soggy"})
	wantKind(t, err, errs.KindValidation)
}

func TestApproveThenReturnRoundTrip(t *testing.T) {
	f := newFixture(t, 7, "3")
	ctx := context.Background()
	before := f.stock(t)

	r := f.create(t, 5)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	_, got, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 5, User: "ana"})
	if err != nil {
		t.Fatalf("RegisterReturn: %v", err)
	}
	if got.State != requests.StateCompleted {
		t.Fatalf("Expected COMPLETED, got %s", got.State)
	}
	if after := f.stock(t); after != before {
		t.Fatalf("Expected stock %d restored, got %d", before, after)
	}
	ev := f.rec.last()
	if ev.PreviousState != "APPROVED" || ev.NewState != "COMPLETED" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

// D and the incident lifecycle
func TestIncidents(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 10)
	if _, err := f.eng.ApprovePartial(ctx, r.ID, "boss", 4); err != nil {
		t.Fatalf("ApprovePartial: %v", err)
	}

	in := IncidentInput{RequestID: r.ID, Type: "Damage", Description: "wet box", AffectedQuantity: 5, Reporter: "ana"}
	_, err := f.eng.RegisterIncident(ctx, in)
	wantKind(t, err, errs.KindInvalidQuantity)

	in.AffectedQuantity = 3
	inc, err := f.eng.RegisterIncident(ctx, in)
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if inc.State != incidents.StateRegistered || inc.Type != incidents.TypeDamage {
		t.Fatalf("unexpected incident %+v", inc)
	}
	req, _ := f.eng.GetRequest(ctx, r.ID)
	if req.State != requests.StateIncidentReported || !req.HasIncident {
		t.Fatalf("unexpected request after incident %+v", req)
	}
	if ev := f.rec.last(); ev.Kind != notify.KindIncidentReported || ev.IncidentID != inc.ID {
		t.Fatalf("unexpected event %+v", ev)
	}

	// a second one cannot be opened while the first is registered
	_, err = f.eng.RegisterIncident(ctx, in)
	wantKind(t, err, errs.KindInvalidState)

	pending, err := f.eng.GetPending(ctx, incidents.Filter{Type: "DAMAGE"})
	if err != nil || len(pending) != 1 {
		t.Fatalf("Expected one pending incident, got %d (%v)", len(pending), err)
	}

	// acceptance does not move stock
	stockBefore := f.stock(t)
	resolved, err := f.eng.ResolveIncident(ctx, inc.ID, true, "boss", "confirmed")
	if err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}
	if resolved.State != incidents.StateAccepted || resolved.Resolver != "boss" || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved incident %+v", resolved)
	}
	if s := f.stock(t); s != stockBefore {
		t.Fatalf("acceptance changed stock from %d to %d", stockBefore, s)
	}
	req, _ = f.eng.GetRequest(ctx, r.ID)
	if req.State != requests.StateIncidentAccepted {
		t.Fatalf("Expected INCIDENT_ACCEPTED, got %s", req.State)
	}

	_, err = f.eng.ResolveIncident(ctx, inc.ID, false, "boss", "")
	wantKind(t, err, errs.KindInvalidState)

	stats, err := f.eng.IncidentStatistics(ctx)
	if err != nil {
		t.Fatalf("IncidentStatistics: %v", err)
	}
	if stats != (incidents.Statistics{Total: 1, Resolved: 1, Accepted: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	list, _ := f.eng.IncidentsForRequest(ctx, r.ID)
	if len(list) != 1 {
		t.Fatalf("Expected 1 incident for request, got %d", len(list))
	}
}

func TestRegisterIncidentNeedsDeliveredRequest(t *testing.T) {
	f := newFixture(t, 10, "1")
	r := f.create(t, 2)
	_, err := f.eng.RegisterIncident(context.Background(), IncidentInput{
		RequestID: r.ID, Type: "loss", Description: "gone", AffectedQuantity: 1, Reporter: "ana",
	})
	wantKind(t, err, errs.KindInvalidState)
}

func TestRejectedIncident(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 2)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	inc, err := f.eng.RegisterIncident(ctx, IncidentInput{RequestID: r.ID, Type: "shortage", Description: "one missing", AffectedQuantity: 1, Reporter: "ana"})
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if _, err := f.eng.ResolveIncident(ctx, inc.ID, false, "boss", "counted twice"); err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}
	req, _ := f.eng.GetRequest(ctx, r.ID)
	if req.State != requests.StateIncidentRejected {
		t.Fatalf("Expected INCIDENT_REJECTED, got %s", req.State)
	}
	_, err = f.eng.CorrectStock(ctx, inc.ID, 1, "boss", "")
	wantKind(t, err, errs.KindInvalidState)
}

func TestCorrectStock(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 6)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	inc, err := f.eng.RegisterIncident(ctx, IncidentInput{RequestID: r.ID, Type: "damage", Description: "crushed", AffectedQuantity: 3, Reporter: "ana"})
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}

	_, err = f.eng.CorrectStock(ctx, inc.ID, 1, "boss", "")
	wantKind(t, err, errs.KindInvalidState)

	if _, err := f.eng.ResolveIncident(ctx, inc.ID, true, "boss", ""); err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}
	got, err := f.eng.CorrectStock(ctx, inc.ID, 2, "boss", "replaced by supplier")
	if err != nil {
		t.Fatalf("CorrectStock: %v", err)
	}
	if got.CorrectedQuantity != 2 {
		t.Fatalf("Expected 2 corrected, got %d", got.CorrectedQuantity)
	}
	if s := f.stock(t); s != 6 {
		t.Fatalf("Expected stock 6, got %d", s)
	}
	_, err = f.eng.CorrectStock(ctx, inc.ID, 2, "boss", "")
	wantKind(t, err, errs.KindInvalidQuantity)
	if _, err := f.eng.CorrectStock(ctx, inc.ID, 1, "boss", ""); err != nil {
		t.Fatalf("last correction: %v", err)
	}

	moves, _ := f.eng.Ledger().Movements(ctx, f.material.ID)
	last := moves[len(moves)-1]
	if last.Kind != materials.MoveIncidentCorrection || last.IncidentID != inc.ID {
		t.Fatalf("unexpected correction movement %+v", last)
	}
}

func TestCorrectStockExcludesReturnedUnits(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 10)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	if _, _, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: r.ID, Quantity: 5, User: "ana"}); err != nil {
		t.Fatalf("RegisterReturn: %v", err)
	}
	inc, err := f.eng.RegisterIncident(ctx, IncidentInput{RequestID: r.ID, Type: "loss", Description: "missing", AffectedQuantity: 10, Reporter: "ana"})
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if _, err := f.eng.ResolveIncident(ctx, inc.ID, true, "boss", ""); err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}

	_, err = f.eng.CorrectStock(ctx, inc.ID, 10, "boss", "")
	wantKind(t, err, errs.KindInvalidQuantity)
	if s := f.stock(t); s != 5 {
		t.Fatalf("rejected correction changed stock: %d", s)
	}

	if _, err := f.eng.CorrectStock(ctx, inc.ID, 5, "boss", ""); err != nil {
		t.Fatalf("CorrectStock: %v", err)
	}
	if s := f.stock(t); s != 10 {
		t.Fatalf("Expected stock back at pre-approval level 10, got %d", s)
	}
	_, err = f.eng.CorrectStock(ctx, inc.ID, 1, "boss", "")
	wantKind(t, err, errs.KindInvalidQuantity)
}

func TestRejectOnlyFromPending(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 4)
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}

	_, err := f.eng.Reject(ctx, r.ID, "boss", "changed my mind")
	wantKind(t, err, errs.KindInvalidState)
	got, _ := f.eng.GetRequest(ctx, r.ID)
	if got.State != requests.StateApproved || got.Observation != "" {
		t.Fatalf("reject touched an approved request: %+v", got)
	}
	if s := f.stock(t); s != 6 {
		t.Fatalf("Expected stock 6, got %d", s)
	}
}

func TestListIncidents(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	a, b := f.create(t, 2), f.create(t, 2)
	for _, r := range []*requests.Request{a, b} {
		if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
			t.Fatalf("ApproveFull: %v", err)
		}
	}
	first, err := f.eng.RegisterIncident(ctx, IncidentInput{RequestID: a.ID, Type: "damage", Description: "wet", AffectedQuantity: 1, Reporter: "ana"})
	if err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if _, err := f.eng.RegisterIncident(ctx, IncidentInput{RequestID: b.ID, Type: " Shortage ", Description: "short", AffectedQuantity: 1, Reporter: "ana"}); err != nil {
		t.Fatalf("RegisterIncident: %v", err)
	}
	if _, err := f.eng.ResolveIncident(ctx, first.ID, false, "boss", "not damaged"); err != nil {
		t.Fatalf("ResolveIncident: %v", err)
	}

	tests := []struct {
		name   string
		filter incidents.Filter
		want   int
	}{
		{"all", incidents.Filter{}, 2},
		{"rejected", incidents.Filter{State: incidents.StateRejected}, 1},
		{"registered", incidents.Filter{State: incidents.StateRegistered}, 1},
		{"type is normalized", incidents.Filter{Type: "SHORTAGE"}, 1},
		{"by request", incidents.Filter{RequestID: a.ID}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := f.eng.ListIncidents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListIncidents: %v", err)
			}
			if len(list) != tt.want {
				t.Fatalf("Expected %d incidents, got %d", tt.want, len(list))
			}
		})
	}

	_, err = f.eng.ListIncidents(ctx, incidents.Filter{State: "lost"})
	wantKind(t, err, errs.KindValidation)
	if types := incidents.Types(); len(types) != 4 || types[0] != incidents.TypeDamage {
		t.Fatalf("unexpected types %v", types)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, 100, "1")
	ctx := context.Background()

	a := f.create(t, 5)
	b := f.create(t, 5)
	c := f.create(t, 5)
	f.create(t, 5)
	if _, err := f.eng.ApproveFull(ctx, a.ID, "boss"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.ApprovePartial(ctx, b.ID, "boss", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Reject(ctx, c.ID, "boss", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.eng.RegisterReturn(ctx, ReturnInput{RequestID: a.ID, Quantity: 1, User: "ana"}); err != nil {
		t.Fatal(err)
	}

	st, err := f.eng.MaterialStatistics(ctx, f.material.ID)
	if err != nil {
		t.Fatalf("MaterialStatistics: %v", err)
	}
	want := requests.Statistics{
		MaterialID:         f.material.ID,
		Total:              4,
		Pending:            1,
		Approved:           1,
		PartiallyDelivered: 1,
		Rejected:           1,
		TotalDelivered:     7,
		TotalReturned:      1,
	}
	if st != want {
		t.Fatalf("Expected %+v, got %+v", want, st)
	}

	list, err := f.eng.ListRequests(ctx, requests.Filter{State: requests.StatePending})
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected 1 pending request, got %d (%v)", len(list), err)
	}
	_, err = f.eng.ListRequests(ctx, requests.Filter{State: "LOST"})
	wantKind(t, err, errs.KindValidation)
}

func TestConcurrentApprovalsDoNotOversell(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 8; i++ {
		ids = append(ids, f.create(t, 3).ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.eng.ApproveFull(ctx, id, "boss")
			switch {
			case err == nil:
				mu.Lock()
				approved++
				mu.Unlock()
			case !errs.Is(err, errs.KindInsufficientStock):
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if approved != 3 {
		t.Fatalf("Expected 3 approvals out of 10 units, got %d", approved)
	}
	if s := f.stock(t); s != 1 {
		t.Fatalf("Expected stock 1, got %d", s)
	}
}

func TestCommitFailureRollsBackAndHidesCause(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 4)
	events := len(f.rec.events)

	f.st.FailNextCommit(errors.New("pq: connection reset by peer"))
	_, err := f.eng.ApproveFull(ctx, r.ID, "boss")
	wantKind(t, err, errs.KindPersistence)
	if msg := errs.UserMessage(err); msg != "the operation could not be completed, please retry" {
		t.Fatalf("cause leaked to caller: %q", msg)
	}
	if s := f.stock(t); s != 10 {
		t.Fatalf("Expected stock 10 after rollback, got %d", s)
	}
	got, _ := f.eng.GetRequest(ctx, r.ID)
	if got.State != requests.StatePending {
		t.Fatalf("Expected PENDING after rollback, got %s", got.State)
	}
	if len(f.rec.events) != events {
		t.Fatal("rolled back operation must not notify")
	}

	// caller resubmits
	if _, err := f.eng.ApproveFull(ctx, r.ID, "boss"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, 10, "1")
	ctx := context.Background()
	r := f.create(t, 4)
	f.rec.err = errors.New("smtp down")

	got, err := f.eng.ApproveFull(ctx, r.ID, "boss")
	if err != nil {
		t.Fatalf("ApproveFull: %v", err)
	}
	if got.State != requests.StateApproved {
		t.Fatalf("Expected APPROVED, got %s", got.State)
	}
	if s := f.stock(t); s != 6 {
		t.Fatalf("Expected stock 6, got %d", s)
	}
}
