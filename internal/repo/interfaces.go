package repo

import (
	"context"
	"errors"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

var (
	// ErrNotFound is returned when a referenced analysis does not exist.
	ErrNotFound = errors.New("analysis not found")

	// ErrConflict is returned when a write violates a uniqueness
	// constraint, e.g. a duplicate analysis name.
	ErrConflict = errors.New("analysis already exists")
)

// AnalysisFilter narrows a listing. Statuses are OR-ed; Names are exact
// matches applied after the status filter.
type AnalysisFilter struct {
	Statuses []domain.Status
	Names    []string
}

// AnalysisRepository persists analysis records. Writes are point writes:
// last write wins, no version token.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis domain.Analysis) error
	Get(ctx context.Context, id string) (domain.Analysis, error)
	GetByName(ctx context.Context, name string) (domain.Analysis, error)
	Update(ctx context.Context, analysis domain.Analysis) error
	List(ctx context.Context, filter AnalysisFilter) ([]domain.Analysis, error)
}
