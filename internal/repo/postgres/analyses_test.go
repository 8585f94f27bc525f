package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/repo"
)

var analysisRowColumns = []string{
	"analysis_id", "name", "inputs", "pipeline_id", "project_id", "output_uri", "logs_uri",
	"tags", "status", "submission_time", "start_time", "end_time", "launch_execution_ref", "external_analysis_id",
}

func testAnalysis() domain.Analysis {
	return domain.Analysis{
		ID:     "iwa.0196715d-5599-7dd5-92a1-3f3f3f3f3f3f",
		Name:   "wgs-batch-1",
		Inputs: domain.Metadata{"sampleSheet": "s3://bucket/samplesheet.csv"},
		EngineParameters: domain.EngineParameters{
			PipelineID: "0196715d-5599-7dd5-92a1-1f1d1f1d1f1d",
			ProjectID:  "0196715d-5599-7dd5-92a1-2e2e2e2e2e2e",
			OutputURI:  "s3://bucket/out/",
			LogsURI:    "s3://bucket/logs/",
		},
		Tags:           domain.Metadata{"libraryId": "L1234"},
		Status:         domain.StatusPending,
		SubmissionTime: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

// passthroughConverter accepts any argument value. The pgx driver takes
// slices like []string directly; the default sqlmock converter does not.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	return driver.Value(v), nil
}

func newMockStore(t *testing.T) (*AnalysisStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := NewAnalysisStore(db)
	if store == nil {
		t.Fatalf("expected store")
	}
	return store, mock
}

func TestAnalysisStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)
	analysis := testAnalysis()

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			analysis.ID,
			analysis.Name,
			sqlmock.AnyArg(), // inputs json
			analysis.EngineParameters.PipelineID,
			analysis.EngineParameters.ProjectID,
			analysis.EngineParameters.OutputURI,
			analysis.EngineParameters.LogsURI,
			sqlmock.AnyArg(), // tags json
			string(analysis.Status),
			analysis.SubmissionTime,
			sqlmock.AnyArg(), // start_time
			sqlmock.AnyArg(), // end_time
			sqlmock.AnyArg(), // launch_execution_ref
			sqlmock.AnyArg(), // external_analysis_id
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestAnalysisStoreCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO analyses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "analyses_name_idx"})

	err := store.Create(context.Background(), testAnalysis())
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAnalysisStoreCreateRejectsInvalidRecord(t *testing.T) {
	store, _ := newMockStore(t)
	broken := testAnalysis()
	broken.ID = "not-namespaced"
	if err := store.Create(context.Background(), broken); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAnalysisStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	analysis := testAnalysis()
	started := time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC)

	rows := sqlmock.NewRows(analysisRowColumns).AddRow(
		analysis.ID,
		analysis.Name,
		[]byte(`{"sampleSheet":"s3://bucket/samplesheet.csv"}`),
		analysis.EngineParameters.PipelineID,
		analysis.EngineParameters.ProjectID,
		analysis.EngineParameters.OutputURI,
		analysis.EngineParameters.LogsURI,
		[]byte(`{"libraryId":"L1234"}`),
		"SUBMITTED",
		analysis.SubmissionTime,
		started,
		nil,
		"exec-1",
		nil,
	)
	mock.ExpectQuery("SELECT .+ FROM analyses WHERE analysis_id = \\$1").
		WithArgs(analysis.ID).
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", got.Status)
	}
	if got.StartTime == nil || !got.StartTime.Equal(started) {
		t.Fatalf("expected start time %v, got %v", started, got.StartTime)
	}
	if got.EndTime != nil {
		t.Fatalf("expected nil end time")
	}
	if got.LaunchExecutionRef != "exec-1" {
		t.Fatalf("expected launch ref, got %q", got.LaunchExecutionRef)
	}
	if got.Inputs["sampleSheet"] != "s3://bucket/samplesheet.csv" {
		t.Fatalf("expected inputs to decode, got %v", got.Inputs)
	}
}

func TestAnalysisStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM analyses WHERE analysis_id = \\$1").
		WithArgs("iwa.missing").
		WillReturnRows(sqlmock.NewRows(analysisRowColumns))

	_, err := store.Get(context.Background(), "iwa.missing")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisStoreGetByName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM analyses WHERE name = \\$1").
		WithArgs("wgs-batch-1").
		WillReturnRows(sqlmock.NewRows(analysisRowColumns))

	_, err := store.GetByName(context.Background(), "wgs-batch-1")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisStoreUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE analyses SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), testAnalysis())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisStoreListFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM analyses WHERE status = ANY\(\$1\) AND name = ANY\(\$2\) ORDER BY analysis_id`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(analysisRowColumns))

	got, err := store.List(context.Background(), repo.AnalysisFilter{
		Statuses: []domain.Status{domain.StatusRunning, domain.StatusStarting},
		Names:    []string{"wgs-batch-1"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestAnalysisStoreListUnfiltered(t *testing.T) {
	store, mock := newMockStore(t)
	analysis := testAnalysis()

	rows := sqlmock.NewRows(analysisRowColumns).AddRow(
		analysis.ID,
		analysis.Name,
		[]byte(`{}`),
		analysis.EngineParameters.PipelineID,
		analysis.EngineParameters.ProjectID,
		analysis.EngineParameters.OutputURI,
		analysis.EngineParameters.LogsURI,
		[]byte(`{}`),
		"PENDING",
		analysis.SubmissionTime,
		nil,
		nil,
		nil,
		nil,
	)
	mock.ExpectQuery(`SELECT .+ FROM analyses ORDER BY analysis_id`).
		WillReturnRows(rows)

	got, err := store.List(context.Background(), repo.AnalysisFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != analysis.ID {
		t.Fatalf("unexpected listing %v", got)
	}
}
