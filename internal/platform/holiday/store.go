package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists holidays and answers the scheduler's date checks.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// IsHoliday reports whether a holiday is stored for the date,
// regardless of time of day.
func (s *Store) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM holidays WHERE holiday_date = $1)`,
		date.Format("2006-01-02")).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking holiday: %w", err)
	}
	return exists, nil
}

// Upsert stores the holidays, updating name/type/level on date
// conflicts. It returns how many rows were written.
func (s *Store) Upsert(ctx context.Context, holidays []Holiday) (int, error) {
	count := 0
	for _, h := range holidays {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO holidays (holiday_date, name, holiday_type, level)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (holiday_date) DO UPDATE
			SET name = EXCLUDED.name,
				holiday_type = EXCLUDED.holiday_type,
				level = EXCLUDED.level`,
			h.Date.Format("2006-01-02"), h.Name, h.Type, h.Level)
		if err != nil {
			return count, fmt.Errorf("storing holiday %q: %w", h.Name, err)
		}
		count++
	}
	return count, nil
}

// Fetcher is the feed side of a sync, satisfied by Client.
type Fetcher interface {
	FetchYear(ctx context.Context, year int) ([]Holiday, error)
}

// Upserter is the storage side of a sync, satisfied by Store.
type Upserter interface {
	Upsert(ctx context.Context, holidays []Holiday) (int, error)
}

// Sync fetches one year's holidays and stores them.
func Sync(ctx context.Context, fetcher Fetcher, store Upserter, year int) (int, error) {
	holidays, err := fetcher.FetchYear(ctx, year)
	if err != nil {
		return 0, err
	}
	return store.Upsert(ctx, holidays)
}
