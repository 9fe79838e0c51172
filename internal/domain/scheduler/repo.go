package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for events that do not exist or are soft
// deleted.
var ErrNotFound = errors.New("scheduler: event not found")

// Repository is the persistence port for calendar events. Deletes are
// soft: removed events keep their row with deleted_at set.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	Update(ctx context.Context, e *Event) error
	SoftDelete(ctx context.Context, clinicID, id int64) (*Event, error)
	GetByID(ctx context.Context, clinicID, id int64) (*Event, error)
	ListBetween(ctx context.Context, clinicID int64, from, to time.Time) ([]Event, error)
}
