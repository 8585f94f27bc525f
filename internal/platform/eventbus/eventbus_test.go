package eventbus

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

func TestConfigValidate(t *testing.T) {
	if err := (Config{Source: "orcabus.icav2wesmanager"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Config{Source: "  "}).Validate(); err == nil {
		t.Fatalf("expected error for blank source")
	}
}

func TestNewPublisherRequiresDB(t *testing.T) {
	if _, err := NewPublisher(nil, Config{Source: "orcabus.icav2wesmanager"}); err == nil {
		t.Fatalf("expected error without db")
	}
}

func TestPublishStateChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	publisher, err := NewPublisher(db, Config{Source: "orcabus.icav2wesmanager"})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	started := time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC)
	analysis := domain.Analysis{
		ID:   "iwa.0196715d-5599-7dd5-92a1-3f3f3f3f3f3f",
		Name: "wgs-batch-1",
		EngineParameters: domain.EngineParameters{
			PipelineID: "0196715d-5599-7dd5-92a1-1f1d1f1d1f1d",
			ProjectID:  "0196715d-5599-7dd5-92a1-2e2e2e2e2e2e",
			OutputURI:  "s3://bucket/out/",
			LogsURI:    "s3://bucket/logs/",
		},
		Status:             domain.StatusSubmitted,
		SubmissionTime:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		StartTime:          &started,
		LaunchExecutionRef: "exec-1",
	}

	var capturedDetail []byte
	mock.ExpectQuery("INSERT INTO analysis_events").
		WithArgs(
			sqlmock.AnyArg(), // emitted_at
			"orcabus.icav2wesmanager",
			DetailTypeAnalysisStateChange,
			argCapture{&capturedDetail},
			sqlmock.AnyArg(), // integrity_sha256
		).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(int64(42)))

	if err := publisher.PublishStateChange(context.Background(), analysis); err != nil {
		t.Fatalf("PublishStateChange: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}

	var detail map[string]any
	if err := json.Unmarshal(capturedDetail, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail["id"] != analysis.ID || detail["status"] != "SUBMITTED" {
		t.Fatalf("unexpected detail %v", detail)
	}
	params, _ := detail["engineParameters"].(map[string]any)
	if params["pipelineId"] != analysis.EngineParameters.PipelineID {
		t.Fatalf("expected camelCase engine parameters in detail, got %v", detail["engineParameters"])
	}
	if _, present := detail["endTime"]; present {
		t.Fatalf("unset optional fields must be omitted from the detail")
	}
	if _, present := detail["externalAnalysisId"]; present {
		t.Fatalf("unset external id must be omitted from the detail")
	}
}

// argCapture matches any []byte argument and keeps a copy for inspection.
type argCapture struct {
	dst *[]byte
}

func (a argCapture) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	*a.dst = append([]byte(nil), raw...)
	return true
}
