// Package store is the persistence port of the request engine. Every mutating
// operation runs inside InTx; reads outside a transaction are read-committed
// and may lag behind concurrent writers.
package store

import (
	"context"
	"errors"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/offices"
	"github.com/Spok95/supply-requests/internal/domain/requests"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	// ErrStateConflict means a conditional update found the row in another state.
	ErrStateConflict = errors.New("store: state conflict")
)

type Store interface {
	// InTx runs fn in one transaction: committed when fn returns nil,
	// rolled back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error

	GetOffice(ctx context.Context, id int64) (*offices.Office, error)
	GetMaterial(ctx context.Context, id int64) (*materials.Material, error)
	StockLevel(ctx context.Context, materialID int64) (materials.StockLevel, error)
	ListStockLevels(ctx context.Context) ([]materials.StockLevel, error)
	ListLowStock(ctx context.Context, margin int64) ([]materials.StockLevel, error)
	ListMovements(ctx context.Context, materialID int64) ([]materials.Movement, error)

	GetRequest(ctx context.Context, id int64) (*requests.Request, error)
	ListRequests(ctx context.Context, f requests.Filter) ([]requests.Request, error)
	RequestStatistics(ctx context.Context, materialID int64) (requests.Statistics, error)
	ReturnedQuantity(ctx context.Context, requestID int64) (int64, error)
	ListReturns(ctx context.Context, requestID int64) ([]requests.Return, error)
	ListDeliveries(ctx context.Context, requestID int64) ([]requests.Delivery, error)

	GetIncident(ctx context.Context, id int64) (*incidents.Incident, error)
	ListIncidents(ctx context.Context, f incidents.Filter) ([]incidents.Incident, error)
	IncidentStatistics(ctx context.Context) (incidents.Statistics, error)
}

// Tx is the write side. Lock* methods take a row lock held until commit.
type Tx interface {
	GetOffice(ctx context.Context, id int64) (*offices.Office, error)
	GetMaterial(ctx context.Context, id int64) (*materials.Material, error)

	// DecrementStock subtracts qty only if the result stays >= 0, in a single
	// conditional statement. ErrInsufficientStock when no row qualified.
	DecrementStock(ctx context.Context, materialID, qty int64) error
	IncrementStock(ctx context.Context, materialID, qty int64) error
	InsertMovement(ctx context.Context, m *materials.Movement) error

	InsertRequest(ctx context.Context, r *requests.Request) error
	LockRequest(ctx context.Context, id int64) (*requests.Request, error)
	// UpdateRequest writes r only if the stored state still equals expected.
	UpdateRequest(ctx context.Context, r *requests.Request, expected requests.State) error
	InsertDelivery(ctx context.Context, d *requests.Delivery) error
	ReturnedQuantity(ctx context.Context, requestID int64) (int64, error)
	InsertReturn(ctx context.Context, r *requests.Return) error

	InsertIncident(ctx context.Context, i *incidents.Incident) error
	LockIncident(ctx context.Context, id int64) (*incidents.Incident, error)
	UpdateIncident(ctx context.Context, i *incidents.Incident, expected incidents.State) error
	// OpenIncidentForRequest returns the registered incident of a request, or nil.
	OpenIncidentForRequest(ctx context.Context, requestID int64) (*incidents.Incident, error)
	// CorrectedQuantity sums stock corrections over all incidents of a request.
	CorrectedQuantity(ctx context.Context, requestID int64) (int64, error)
}
