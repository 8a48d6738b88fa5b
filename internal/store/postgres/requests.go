package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Spok95/supply-requests/internal/domain/requests"
	"github.com/Spok95/supply-requests/internal/infra/db"
	"github.com/Spok95/supply-requests/internal/store"
)

const requestColumns = `
	id, office_id, material_id, quantity_requested, quantity_delivered, state,
	COALESCE(approver_id, ''), approved_at, percentage_office,
	total_value, office_value, headquarters_value, values_computed_at,
	requester, observation, has_incident, last_delivery_at, created_at`

func scanRequest(row interface{ Scan(...any) error }) (*requests.Request, error) {
	var (
		r     requests.Request
		state string
	)
	if err := row.Scan(
		&r.ID,
		&r.OfficeID,
		&r.MaterialID,
		&r.QuantityRequested,
		&r.QuantityDelivered,
		&state,
		&r.ApproverID,
		&r.ApprovedAt,
		&r.PercentageOffice,
		&r.TotalValue,
		&r.OfficeValue,
		&r.HeadquartersValue,
		&r.ValuesComputedAt,
		&r.Requester,
		&r.Observation,
		&r.HasIncident,
		&r.LastDeliveryAt,
		&r.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	r.State = requests.State(state)
	return &r, nil
}

func (s *Store) GetRequest(ctx context.Context, id int64) (*requests.Request, error) {
	return scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
}

func (s *Store) ListRequests(ctx context.Context, f requests.Filter) ([]requests.Request, error) {
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
	if f.OfficeID != 0 {
		add("office_id = $%d", f.OfficeID)
	}
	if f.MaterialID != 0 {
		add("material_id = $%d", f.MaterialID)
	}
	if f.Requester != "" {
		add("requester = $%d", f.Requester)
	}

	sql := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []requests.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) RequestStatistics(ctx context.Context, materialID int64) (requests.Statistics, error) {
	st := requests.Statistics{MaterialID: materialID}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE state = 'PENDING'),
			COUNT(*) FILTER (WHERE state = 'APPROVED'),
			COUNT(*) FILTER (WHERE state = 'PARTIALLY_DELIVERED'),
			COUNT(*) FILTER (WHERE state = 'REJECTED'),
			COUNT(*) FILTER (WHERE state = 'COMPLETED'),
			COUNT(*) FILTER (WHERE has_incident),
			COALESCE(SUM(quantity_delivered), 0)
		FROM requests
		WHERE material_id = $1
	`, materialID).Scan(
		&st.Total,
		&st.Pending,
		&st.Approved,
		&st.PartiallyDelivered,
		&st.Rejected,
		&st.Completed,
		&st.WithIncident,
		&st.TotalDelivered,
	)
	if err != nil {
		return requests.Statistics{}, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_returned), 0) FROM returns WHERE material_id = $1
	`, materialID).Scan(&st.TotalReturned)
	if err != nil {
		return requests.Statistics{}, err
	}
	return st, nil
}

func returnedQuantity(ctx context.Context, q db.Querier, requestID int64) (int64, error) {
	var sum int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_returned), 0) FROM returns WHERE request_id = $1
	`, requestID).Scan(&sum)
	return sum, err
}

func (s *Store) ReturnedQuantity(ctx context.Context, requestID int64) (int64, error) {
	return returnedQuantity(ctx, s.pool, requestID)
}

func (s *Store) ListReturns(ctx context.Context, requestID int64) ([]requests.Return, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, material_id, quantity_returned, created_at, username, observation, condition
		FROM returns
		WHERE request_id = $1
		ORDER BY created_at DESC, id DESC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []requests.Return
	for rows.Next() {
		var (
			r    requests.Return
			cond string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.MaterialID, &r.QuantityReturned, &r.CreatedAt, &r.User, &r.Observation, &cond); err != nil {
			return nil, err
		}
		r.Condition = requests.Condition(cond)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListDeliveries(ctx context.Context, requestID int64) ([]requests.Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, quantity, username, note, created_at
		FROM deliveries
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []requests.Delivery
	for rows.Next() {
		var d requests.Delivery
		if err := rows.Scan(&d.ID, &d.RequestID, &d.Quantity, &d.User, &d.Note, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *Tx) InsertRequest(ctx context.Context, r *requests.Request) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO requests (
			office_id, material_id, quantity_requested, quantity_delivered, state,
			percentage_office, total_value, office_value, headquarters_value,
			requester, observation
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`,
		r.OfficeID,
		r.MaterialID,
		r.QuantityRequested,
		r.QuantityDelivered,
		string(r.State),
		r.PercentageOffice,
		r.TotalValue,
		r.OfficeValue,
		r.HeadquartersValue,
		r.Requester,
		r.Observation,
	).Scan(&r.ID, &r.CreatedAt)
}

func (t *Tx) LockRequest(ctx context.Context, id int64) (*requests.Request, error) {
	return scanRequest(t.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id))
}

func (t *Tx) UpdateRequest(ctx context.Context, r *requests.Request, expected requests.State) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE requests SET
			quantity_delivered = $3,
			state              = $4,
			approver_id        = NULLIF($5, ''),
			approved_at        = $6,
			total_value        = $7,
			office_value       = $8,
			headquarters_value = $9,
			values_computed_at = $10,
			observation        = $11,
			has_incident       = $12,
			last_delivery_at   = $13
		WHERE id = $1 AND state = $2
	`,
		r.ID,
		string(expected),
		r.QuantityDelivered,
		string(r.State),
		r.ApproverID,
		r.ApprovedAt,
		r.TotalValue,
		r.OfficeValue,
		r.HeadquartersValue,
		r.ValuesComputedAt,
		r.Observation,
		r.HasIncident,
		r.LastDeliveryAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStateConflict
	}
	return nil
}

func (t *Tx) InsertDelivery(ctx context.Context, d *requests.Delivery) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO deliveries (request_id, quantity, username, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, d.RequestID, d.Quantity, d.User, d.Note).Scan(&d.ID, &d.CreatedAt)
}

func (t *Tx) ReturnedQuantity(ctx context.Context, requestID int64) (int64, error) {
	return returnedQuantity(ctx, t.q, requestID)
}

func (t *Tx) InsertReturn(ctx context.Context, r *requests.Return) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO returns (request_id, material_id, quantity_returned, username, observation, condition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`,
		r.RequestID,
		r.MaterialID,
		r.QuantityReturned,
		r.User,
		r.Observation,
		string(r.Condition),
		nullTime(r.CreatedAt),
	).Scan(&r.ID, &r.CreatedAt)
}
