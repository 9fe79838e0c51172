package clinic

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a clinic or desk does not exist (or the
// clinic is inactive, which callers treat the same way).
var ErrNotFound = errors.New("clinic: not found")

// Repository is the read side over the clinics and desks tables. It drives
// the subdomain tenant middleware and the realtime connect checks; the full
// clinic CRUD surface lives outside this service.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Clinic, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Clinic, error)
	GetDesk(ctx context.Context, id int64) (*Desk, error)
	Create(ctx context.Context, c *Clinic) error
}
