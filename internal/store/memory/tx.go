package memory

import (
	"context"
	"time"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/offices"
	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/store"
)

type memTx struct {
	d   *data
	now func() time.Time
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) GetOffice(_ context.Context, id int64) (*offices.Office, error) {
	return getOffice(t.d, id)
}

func (t *memTx) GetMaterial(_ context.Context, id int64) (*materials.Material, error) {
	return getMaterial(t.d, id)
}

func (t *memTx) DecrementStock(_ context.Context, materialID, qty int64) error {
	m, ok := t.d.materials[materialID]
	if !ok || m.QuantityAvailable < qty {
		return store.ErrInsufficientStock
	}
	m.QuantityAvailable -= qty
	t.d.materials[materialID] = m
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, materialID, qty int64) error {
	m, ok := t.d.materials[materialID]
	if !ok {
		return store.ErrNotFound
	}
	m.QuantityAvailable += qty
	t.d.materials[materialID] = m
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, m *materials.Movement) error {
	m.ID = t.d.nextID()
	m.CreatedAt = t.now()
	t.d.movements = append(t.d.movements, *m)
	return nil
}

func (t *memTx) InsertRequest(_ context.Context, r *requests.Request) error {
	r.ID = t.d.nextID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	t.d.requests[r.ID] = *r
	return nil
}

func (t *memTx) LockRequest(_ context.Context, id int64) (*requests.Request, error) {
	r, ok := t.d.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateRequest(_ context.Context, r *requests.Request, expected requests.State) error {
	cur, ok := t.d.requests[r.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.State != expected {
		return store.ErrStateConflict
	}
	t.d.requests[r.ID] = *r
	return nil
}

func (t *memTx) InsertDelivery(_ context.Context, d *requests.Delivery) error {
	d.ID = t.d.nextID()
	d.CreatedAt = t.now()
	t.d.deliveries = append(t.d.deliveries, *d)
	return nil
}

func (t *memTx) ReturnedQuantity(_ context.Context, requestID int64) (int64, error) {
	return returnedQuantity(t.d, requestID), nil
}

func (t *memTx) InsertReturn(_ context.Context, r *requests.Return) error {
	r.ID = t.d.nextID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	t.d.returns = append(t.d.returns, *r)
	return nil
}

func (t *memTx) InsertIncident(_ context.Context, i *incidents.Incident) error {
	i.ID = t.d.nextID()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = t.now()
	}
	t.d.incidents[i.ID] = *i
	return nil
}

func (t *memTx) LockIncident(_ context.Context, id int64) (*incidents.Incident, error) {
	i, ok := t.d.incidents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &i, nil
}

func (t *memTx) UpdateIncident(_ context.Context, i *incidents.Incident, expected incidents.State) error {
	cur, ok := t.d.incidents[i.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.State != expected {
		return store.ErrStateConflict
	}
	t.d.incidents[i.ID] = *i
	return nil
}

func (t *memTx) CorrectedQuantity(_ context.Context, requestID int64) (int64, error) {
	var sum int64
	for _, i := range t.d.incidents {
		if i.RequestID == requestID {
			sum += i.CorrectedQuantity
		}
	}
	return sum, nil
}

func (t *memTx) OpenIncidentForRequest(_ context.Context, requestID int64) (*incidents.Incident, error) {
	for _, i := range t.d.incidents {
		if i.RequestID == requestID && i.State == incidents.StateRegistered {
			found := i
			return &found, nil
		}
	}
	return nil, nil
}
