package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable { return r.pool }

const eventCols = `id, clinic_id, patient_id, user_id, desk_id, event_date,
	description, is_return, is_off, off_reason, created_at, updated_at, deleted_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.ClinicID, &e.PatientID, &e.UserID, &e.DeskID,
		&e.Date, &e.Description, &e.IsReturn, &e.IsOff, &e.OffReason,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO scheduler_events
			(clinic_id, patient_id, user_id, desk_id, event_date,
			 description, is_return, is_off, off_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		e.ClinicID, e.PatientID, e.UserID, e.DeskID, e.Date,
		e.Description, e.IsReturn, e.IsOff, e.OffReason).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) Update(ctx context.Context, e *Event) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE scheduler_events SET
			patient_id = $1, user_id = $2, desk_id = $3, event_date = $4,
			description = $5, is_return = $6, is_off = $7, off_reason = $8,
			updated_at = now()
		WHERE id = $9 AND clinic_id = $10 AND deleted_at IS NULL
		RETURNING updated_at`,
		e.PatientID, e.UserID, e.DeskID, e.Date,
		e.Description, e.IsReturn, e.IsOff, e.OffReason,
		e.ID, e.ClinicID).
		Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, clinicID, id int64) (*Event, error) {
	return scanEvent(r.conn(ctx).QueryRow(ctx, `
		UPDATE scheduler_events
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL
		RETURNING `+eventCols, id, clinicID))
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id int64) (*Event, error) {
	return scanEvent(r.conn(ctx).QueryRow(ctx, `
		SELECT `+eventCols+`
		FROM scheduler_events
		WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL`, id, clinicID))
}

func (r *repoPG) ListBetween(ctx context.Context, clinicID int64, from, to time.Time) ([]Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+eventCols+`
		FROM scheduler_events
		WHERE clinic_id = $1 AND event_date >= $2 AND event_date < $3
			AND deleted_at IS NULL
		ORDER BY event_date`, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
