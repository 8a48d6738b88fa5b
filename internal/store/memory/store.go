// Package memory keeps the whole dataset in process. A transaction works on a
// copy of the data that replaces the live copy only when it commits, which
// gives the same all-or-nothing behaviour the postgres store gets from the
// database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/offices"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/store"
)

type data struct {
	seq        int64
	offices    map[int64]offices.Office
	materials  map[int64]materials.Material
	requests   map[int64]requests.Request
	incidents  map[int64]incidents.Incident
	returns    []requests.Return
	deliveries []requests.Delivery
	movements  []materials.Movement
}

func newData() *data {
	return &data{
		offices:   map[int64]offices.Office{},
		materials: map[int64]materials.Material{},
		requests:  map[int64]requests.Request{},
		incidents: map[int64]incidents.Incident{},
	}
}

func (d *data) clone() *data {
	c := &data{
		seq:        d.seq,
		offices:    make(map[int64]offices.Office, len(d.offices)),
		materials:  make(map[int64]materials.Material, len(d.materials)),
		requests:   make(map[int64]requests.Request, len(d.requests)),
		incidents:  make(map[int64]incidents.Incident, len(d.incidents)),
		returns:    append([]requests.Return(nil), d.returns...),
		deliveries: append([]requests.Delivery(nil), d.deliveries...),
		movements:  append([]materials.Movement(nil), d.movements...),
	}
	for k, v := range d.offices {
		c.offices[k] = v
	}
	for k, v := range d.materials {
		c.materials[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.incidents {
		c.incidents[k] = v
	}
	return c
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

type Store struct {
	mu       sync.RWMutex
	d        *data
	now      func() time.Time
	failNext error
}

// Verify interface compliance
var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{d: newData(), now: time.Now}
}

// SetClock replaces the time source used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// FailNextCommit makes the next transaction fail with err at commit time,
// after fn has run, so nothing it wrote becomes visible.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// AddOffice registers an office and returns it with its id.
func (s *Store) AddOffice(o offices.Office) offices.Office {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.d.nextID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.d.offices[o.ID] = o
	return o
}

// AddMaterial registers a material and returns it with its id.
func (s *Store) AddMaterial(m materials.Material) materials.Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.d.nextID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.d.materials[m.ID] = m
	return m
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{d: s.d.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	s.d = tx.d
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) GetOffice(_ context.Context, id int64) (*offices.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOffice(s.d, id)
}

func (s *Store) GetMaterial(_ context.Context, id int64) (*materials.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMaterial(s.d, id)
}

func (s *Store) StockLevel(_ context.Context, materialID int64) (materials.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.d.materials[materialID]
	if !ok {
		return materials.StockLevel{}, store.ErrNotFound
	}
	return levelOf(m), nil
}

func (s *Store) ListStockLevels(_ context.Context) ([]materials.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels(func(materials.StockLevel) bool { return true }), nil
}

func (s *Store) ListLowStock(_ context.Context, margin int64) ([]materials.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels(func(l materials.StockLevel) bool { return l.Low(margin) }), nil
}

func (s *Store) levels(keep func(materials.StockLevel) bool) []materials.StockLevel {
	var out []materials.StockLevel
	for _, m := range s.d.materials {
		if !m.Active {
			continue
		}
		if l := levelOf(m); keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) ListMovements(_ context.Context, materialID int64) ([]materials.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []materials.Movement
	for _, m := range s.d.movements {
		if m.MaterialID == materialID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) GetRequest(_ context.Context, id int64) (*requests.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.d.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListRequests(_ context.Context, f requests.Filter) ([]requests.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []requests.Request
	for _, r := range s.d.requests {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) RequestStatistics(_ context.Context, materialID int64) (requests.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := requests.Statistics{MaterialID: materialID}
	for _, r := range s.d.requests {
		if r.MaterialID != materialID {
			continue
		}
		st.Total++
		st.TotalDelivered += r.QuantityDelivered
		if r.HasIncident {
			st.WithIncident++
		}
		switch r.State {
		case requests.StatePending:
			st.Pending++
		case requests.StateApproved:
			st.Approved++
		case requests.StatePartiallyDelivered:
			st.PartiallyDelivered++
		case requests.StateRejected:
			st.Rejected++
		case requests.StateCompleted:
			st.Completed++
		}
	}
	for _, ret := range s.d.returns {
		if ret.MaterialID == materialID {
			st.TotalReturned += ret.QuantityReturned
		}
	}
	return st, nil
}

func (s *Store) ReturnedQuantity(_ context.Context, requestID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return returnedQuantity(s.d, requestID), nil
}

func (s *Store) ListReturns(_ context.Context, requestID int64) ([]requests.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []requests.Return
	for i := len(s.d.returns) - 1; i >= 0; i-- {
		if s.d.returns[i].RequestID == requestID {
			out = append(out, s.d.returns[i])
		}
	}
	return out, nil
}

func (s *Store) ListDeliveries(_ context.Context, requestID int64) ([]requests.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []requests.Delivery
	for _, d := range s.d.deliveries {
		if d.RequestID == requestID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) GetIncident(_ context.Context, id int64) (*incidents.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.d.incidents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &i, nil
}

func (s *Store) ListIncidents(_ context.Context, f incidents.Filter) ([]incidents.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []incidents.Incident
	for _, i := range s.d.incidents {
		if f.Match(i) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out, nil
}

func (s *Store) IncidentStatistics(_ context.Context) (incidents.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st incidents.Statistics
	for _, i := range s.d.incidents {
		st.Total++
		switch i.State {
		case incidents.StateRegistered:
			st.Pending++
		case incidents.StateAccepted:
			st.Accepted++
			st.Resolved++
		case incidents.StateRejected:
			st.Rejected++
			st.Resolved++
		}
	}
	return st, nil
}

func getOffice(d *data, id int64) (*offices.Office, error) {
	o, ok := d.offices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func getMaterial(d *data, id int64) (*materials.Material, error) {
	m, ok := d.materials[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func returnedQuantity(d *data, requestID int64) int64 {
	var sum int64
	for _, r := range d.returns {
		if r.RequestID == requestID {
			sum += r.QuantityReturned
		}
	}
	return sum
}

func levelOf(m materials.Material) materials.StockLevel {
	return materials.StockLevel{
		MaterialID:        m.ID,
		Name:              m.Name,
		OfficeID:          m.OfficeID,
		QuantityAvailable: m.QuantityAvailable,
		MinimumQuantity:   m.MinimumQuantity,
	}
}
