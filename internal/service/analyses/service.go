package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/launcher"
	"github.com/wesman-labs/wesman-go/internal/repo"
)

var (
	// ErrNameConflict is returned when a creation request reuses an
	// existing analysis name.
	ErrNameConflict = errors.New("analysis name already exists")

	// ErrInvalidArgument is returned for malformed creation fields or an
	// unrecognized update status.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotAbortable is returned when an abort is requested for an
	// analysis outside the STARTING/RUNNING window.
	ErrNotAbortable = errors.New("job is not in a state that can be aborted")
)

// Publisher emits one notification per persisted state change.
type Publisher interface {
	PublishStateChange(ctx context.Context, analysis domain.Analysis) error
}

type Service struct {
	analyses repo.AnalysisRepository
	launcher launcher.Launcher
	events   Publisher
}

func New(analysisRepo repo.AnalysisRepository, jobLauncher launcher.Launcher, events Publisher) *Service {
	if analysisRepo == nil || jobLauncher == nil || events == nil {
		return nil
	}
	return &Service{
		analyses: analysisRepo,
		launcher: jobLauncher,
		events:   events,
	}
}

type CreateInput struct {
	Name             string
	Inputs           domain.Metadata
	EngineParameters domain.EngineParameters
	Tags             domain.Metadata
}

// Create persists a new analysis, launches it on the platform, and emits a
// single state-change event for the SUBMITTED record. The PENDING phase is
// persisted but never observable through a successful create: the record
// advances to SUBMITTED within the same call. If the launch fails the
// PENDING row stays behind with no launch reference and no event, as a
// recoverable, inspectable state.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Analysis, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Analysis{}, fmt.Errorf("%w: analysis name is required", ErrInvalidArgument)
	}
	if err := in.EngineParameters.Validate(); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// Check-then-persist; can't solve every race condition, but this is
	// pretty close to immediate. The unique index on name backstops it.
	if _, err := s.analyses.GetByName(ctx, name); err == nil {
		return domain.Analysis{}, fmt.Errorf("%w: %q", ErrNameConflict, name)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Analysis{}, fmt.Errorf("probe name %q: %w", name, err)
	}

	id, err := domain.NewAnalysisID()
	if err != nil {
		return domain.Analysis{}, err
	}
	analysis := domain.Analysis{
		ID:               id,
		Name:             name,
		Inputs:           in.Inputs.Clone(),
		EngineParameters: in.EngineParameters,
		Tags:             in.Tags.Clone(),
		Status:           domain.StatusPending,
		SubmissionTime:   time.Now().UTC(),
	}
	if err := s.analyses.Create(ctx, analysis); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Analysis{}, fmt.Errorf("%w: %q", ErrNameConflict, name)
		}
		return domain.Analysis{}, fmt.Errorf("persist analysis: %w", err)
	}

	executionRef, err := s.launcher.Launch(ctx, analysis)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("launch analysis %s: %w", analysis.ID, err)
	}

	started := time.Now().UTC()
	analysis.StartTime = &started
	analysis.LaunchExecutionRef = executionRef
	analysis.Status = domain.StatusSubmitted
	if err := s.analyses.Update(ctx, analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("persist submitted analysis %s: %w", analysis.ID, err)
	}

	if err := s.events.PublishStateChange(ctx, analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("publish state change for %s: %w", analysis.ID, err)
	}
	return analysis, nil
}

// UpdateStatus moves an analysis to any status in the patch-accepted set.
// No adjacency graph is enforced beyond membership; out-of-band platform
// notifications drive these calls and arrival order is not guaranteed.
func (s *Service) UpdateStatus(ctx context.Context, id string, rawStatus string, externalAnalysisID string) (domain.Analysis, error) {
	status := domain.NormalizeStatus(rawStatus)
	if status == "" || !status.IsPatchTarget() {
		return domain.Analysis{}, fmt.Errorf(
			"%w: status must be one of RUNNABLE, STARTING, RUNNING, SUCCEEDED, FAILED or ABORTED (got %q)",
			ErrInvalidArgument, rawStatus,
		)
	}

	analysis, err := s.analyses.Get(ctx, id)
	if err != nil {
		return domain.Analysis{}, err
	}

	analysis.Status = status
	if status.IsTerminal() && analysis.EndTime == nil {
		ended := time.Now().UTC()
		analysis.EndTime = &ended
	}
	// External analysis id is write-once: the first non-empty value sticks.
	if analysis.ExternalAnalysisID == "" && strings.TrimSpace(externalAnalysisID) != "" {
		analysis.ExternalAnalysisID = strings.TrimSpace(externalAnalysisID)
	}

	if err := s.analyses.Update(ctx, analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("persist analysis %s: %w", analysis.ID, err)
	}
	if err := s.events.PublishStateChange(ctx, analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("publish state change for %s: %w", analysis.ID, err)
	}
	return analysis, nil
}

// Abort requests an abort on the platform without touching the status. The
// ABORTED transition arrives later through UpdateStatus, driven by the
// platform's own notification, so no event is emitted here.
func (s *Service) Abort(ctx context.Context, id string) (string, error) {
	analysis, err := s.analyses.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !analysis.Status.IsAbortable() {
		return "", ErrNotAbortable
	}

	if err := s.launcher.Abort(ctx, analysis); err != nil {
		return "", fmt.Errorf("abort analysis %s: %w", analysis.ID, err)
	}
	if err := s.analyses.Update(ctx, analysis); err != nil {
		return "", fmt.Errorf("persist analysis %s: %w", analysis.ID, err)
	}
	return fmt.Sprintf("Aborting analysis %s", analysis.ExternalAnalysisID), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Analysis, error) {
	return s.analyses.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter repo.AnalysisFilter) ([]domain.Analysis, error) {
	return s.analyses.List(ctx, filter)
}
