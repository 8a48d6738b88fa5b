package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Spok95/supply-requests/internal/domain/incidents"
	"github.com/Spok95/supply-requests/internal/store"
)

const incidentColumns = `
	id, request_id, material_id, office_id, type, description,
	affected_quantity, corrected_quantity, state, reporter,
	COALESCE(resolver, ''), resolved_at, resolution_comment, evidence_path, created_at`

// uniqueViolation is the SQLSTATE raised by incidents_one_open_idx.
const uniqueViolation = "23505"

func scanIncident(row interface{ Scan(...any) error }) (*incidents.Incident, error) {
	var (
		i          incidents.Incident
		typ, state string
	)
	if err := row.Scan(
		&i.ID,
		&i.RequestID,
		&i.MaterialID,
		&i.OfficeID,
		&typ,
		&i.Description,
		&i.AffectedQuantity,
		&i.CorrectedQuantity,
		&state,
		&i.Reporter,
		&i.Resolver,
		&i.ResolvedAt,
		&i.ResolutionComment,
		&i.EvidencePath,
		&i.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	i.Type = incidents.Type(typ)
	i.State = incidents.State(state)
	return &i, nil
}

func (s *Store) GetIncident(ctx context.Context, id int64) (*incidents.Incident, error) {
	return scanIncident(s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
}

func (s *Store) ListIncidents(ctx context.Context, f incidents.Filter) ([]incidents.Incident, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.State != "" {
		add("state = $%d", string(f.State))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.OfficeID != 0 {
		add("office_id = $%d", f.OfficeID)
	}
	if f.RequestID != 0 {
		add("request_id = $%d", f.RequestID)
	}

	sql := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []incidents.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (s *Store) IncidentStatistics(ctx context.Context) (incidents.Statistics, error) {
	var st incidents.Statistics
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE state = 'registered'),
			COUNT(*) FILTER (WHERE state <> 'registered'),
			COUNT(*) FILTER (WHERE state = 'accepted'),
			COUNT(*) FILTER (WHERE state = 'rejected')
		FROM incidents
	`).Scan(&st.Total, &st.Pending, &st.Resolved, &st.Accepted, &st.Rejected)
	return st, err
}

func (t *Tx) InsertIncident(ctx context.Context, i *incidents.Incident) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO incidents (
			request_id, material_id, office_id, type, description,
			affected_quantity, state, reporter, evidence_path, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
		RETURNING id, created_at
	`,
		i.RequestID,
		i.MaterialID,
		i.OfficeID,
		string(i.Type),
		i.Description,
		i.AffectedQuantity,
		string(i.State),
		i.Reporter,
		i.EvidencePath,
		nullTime(i.CreatedAt),
	).Scan(&i.ID, &i.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrStateConflict
	}
	return err
}

func (t *Tx) LockIncident(ctx context.Context, id int64) (*incidents.Incident, error) {
	return scanIncident(t.q.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id))
}

func (t *Tx) UpdateIncident(ctx context.Context, i *incidents.Incident, expected incidents.State) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE incidents SET
			state              = $3,
			resolver           = NULLIF($4, ''),
			resolved_at        = $5,
			resolution_comment = $6,
			corrected_quantity = $7
		WHERE id = $1 AND state = $2
	`,
		i.ID,
		string(expected),
		string(i.State),
		i.Resolver,
		i.ResolvedAt,
		i.ResolutionComment,
		i.CorrectedQuantity,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1)`, i.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStateConflict
	}
	return nil
}

func (t *Tx) OpenIncidentForRequest(ctx context.Context, requestID int64) (*incidents.Incident, error) {
	i, err := scanIncident(t.q.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE request_id = $1 AND state = 'registered'
		FOR UPDATE
	`, requestID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return i, err
}

func (t *Tx) CorrectedQuantity(ctx context.Context, requestID int64) (int64, error) {
	var sum int64
	err := t.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(corrected_quantity), 0) FROM incidents WHERE request_id = $1
	`, requestID).Scan(&sum)
	return sum, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

