package job

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List and Count. Zero values match everything.
type ListFilter struct {
	Status Status
	App    string
}

type Store interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Job, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	Start(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap) error

	// ClaimNextCreated moves the oldest created job to running and returns
	// it, or returns nil when no job is waiting. Concurrent callers never
	// claim the same job.
	ClaimNextCreated(ctx context.Context) (*Job, error)
}

type UpdateSetter func(*Job) error
