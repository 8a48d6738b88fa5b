package postgres

import (
	"context"

	"github.com/Spok95/supply-requests/internal/domain/materials"
	"github.com/Spok95/supply-requests/internal/domain/offices"
	"github.com/Spok95/supply-requests/internal/infra/db"
	"github.com/Spok95/supply-requests/internal/store"
)

const materialColumns = `id, name, unit_value, quantity_available, minimum_quantity, office_id, active, created_at`

func scanMaterial(row interface{ Scan(...any) error }) (*materials.Material, error) {
	var m materials.Material
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.UnitValue,
		&m.QuantityAvailable,
		&m.MinimumQuantity,
		&m.OfficeID,
		&m.Active,
		&m.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func getMaterial(ctx context.Context, q db.Querier, id int64) (*materials.Material, error) {
	return scanMaterial(q.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
}

func getOffice(ctx context.Context, q db.Querier, id int64) (*offices.Office, error) {
	row := q.QueryRow(ctx, `
		SELECT id, name, headquarters, email, active, created_at
		FROM offices WHERE id = $1
	`, id)
	var o offices.Office
	if err := row.Scan(&o.ID, &o.Name, &o.Headquarters, &o.Email, &o.Active, &o.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Store) GetMaterial(ctx context.Context, id int64) (*materials.Material, error) {
	return getMaterial(ctx, s.pool, id)
}

func (s *Store) GetOffice(ctx context.Context, id int64) (*offices.Office, error) {
	return getOffice(ctx, s.pool, id)
}

func (s *Store) StockLevel(ctx context.Context, materialID int64) (materials.StockLevel, error) {
	var l materials.StockLevel
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, office_id, quantity_available, minimum_quantity
		FROM materials WHERE id = $1
	`, materialID).Scan(&l.MaterialID, &l.Name, &l.OfficeID, &l.QuantityAvailable, &l.MinimumQuantity)
	if err != nil {
		return materials.StockLevel{}, notFound(err)
	}
	return l, nil
}

func (s *Store) ListStockLevels(ctx context.Context) ([]materials.StockLevel, error) {
	return s.listLevels(ctx, `
		SELECT id, name, office_id, quantity_available, minimum_quantity
		FROM materials
		WHERE active = TRUE
		ORDER BY name
	`)
}

func (s *Store) ListLowStock(ctx context.Context, margin int64) ([]materials.StockLevel, error) {
	return s.listLevels(ctx, `
		SELECT id, name, office_id, quantity_available, minimum_quantity
		FROM materials
		WHERE active = TRUE AND quantity_available <= minimum_quantity + $1
		ORDER BY name
	`, margin)
}

func (s *Store) listLevels(ctx context.Context, sql string, args ...any) ([]materials.StockLevel, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []materials.StockLevel
	for rows.Next() {
		var l materials.StockLevel
		if err := rows.Scan(&l.MaterialID, &l.Name, &l.OfficeID, &l.QuantityAvailable, &l.MinimumQuantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListMovements(ctx context.Context, materialID int64) ([]materials.Movement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, material_id, delta, kind, COALESCE(request_id,0), COALESCE(incident_id,0), actor, note, created_at
		FROM stock_movements
		WHERE material_id = $1
		ORDER BY created_at, id
	`, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []materials.Movement
	for rows.Next() {
		var m materials.Movement
		if err := rows.Scan(&m.ID, &m.MaterialID, &m.Delta, &m.Kind, &m.RequestID, &m.IncidentID, &m.Actor, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *Tx) GetMaterial(ctx context.Context, id int64) (*materials.Material, error) {
	return getMaterial(ctx, t.q, id)
}

func (t *Tx) GetOffice(ctx context.Context, id int64) (*offices.Office, error) {
	return getOffice(ctx, t.q, id)
}

func (t *Tx) DecrementStock(ctx context.Context, materialID, qty int64) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE materials
		SET quantity_available = quantity_available - $2
		WHERE id = $1 AND quantity_available >= $2
	`, materialID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// either the material is gone or there is not enough of it
		return store.ErrInsufficientStock
	}
	return nil
}

func (t *Tx) IncrementStock(ctx context.Context, materialID, qty int64) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE materials SET quantity_available = quantity_available + $2 WHERE id = $1
	`, materialID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *Tx) InsertMovement(ctx context.Context, m *materials.Movement) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO stock_movements (material_id, delta, kind, request_id, incident_id, actor, note)
		VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), $6, $7)
		RETURNING id, created_at
	`, m.MaterialID, m.Delta, string(m.Kind), m.RequestID, m.IncidentID, m.Actor, m.Note).Scan(&m.ID, &m.CreatedAt)
}
