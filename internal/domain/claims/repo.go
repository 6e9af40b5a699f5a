package claims

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("reconciliation run not found")

type ReconciliationRepository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, int, error)
}
