package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/supply-requests/internal/infra/db"
	"github.com/Spok95/supply-requests/internal/store"
)

type Store struct{ pool *pgxpool.Pool }

// Verify interface compliance
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*Tx)(nil)
)

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Tx{q: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Tx implements store.Tx on top of an open pgx transaction.
type Tx struct{ q db.Querier }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
