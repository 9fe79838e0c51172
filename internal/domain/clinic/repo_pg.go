package clinic

import (
	"context"
	"errors"

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

const clinicCols = `id, name, subdomain, active, created_at, updated_at`

func (r *repoPG) scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Subdomain, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Clinic, error) {
	return r.scanClinic(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicCols+` FROM clinics WHERE id = $1 AND active`, id))
}

func (r *repoPG) GetBySubdomain(ctx context.Context, subdomain string) (*Clinic, error) {
	return r.scanClinic(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicCols+` FROM clinics WHERE subdomain = $1 AND active`, subdomain))
}

func (r *repoPG) GetDesk(ctx context.Context, id int64) (*Desk, error) {
	var d Desk
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, clinic_id, name, vacancy, created_at, updated_at
		FROM desks WHERE id = $1`, id).
		Scan(&d.ID, &d.ClinicID, &d.Name, &d.Vacancy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, c *Clinic) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinics (name, subdomain, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Subdomain, c.Active).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}
