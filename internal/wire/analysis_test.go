package wire

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

func testDomainAnalysis() domain.Analysis {
	started := time.Date(2026, 8, 30, 12, 0, 5, 0, time.UTC)
	ended := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
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
		Tags:               domain.Metadata{"libraryId": "L1234"},
		Status:             domain.StatusSucceeded,
		SubmissionTime:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		StartTime:          &started,
		EndTime:            &ended,
		LaunchExecutionRef: "exec-1",
		ExternalAnalysisID: "ica-analysis-1",
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	original := testDomainAnalysis()

	encoded, err := json.Marshal(FromDomain(original))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed Analysis
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(original, parsed.ToDomain()); diff != "" {
		t.Fatalf("round trip lost fields (-want +got):\n%s", diff)
	}
}

func TestAnalysisOmitsUnsetOptionalFields(t *testing.T) {
	pending := testDomainAnalysis()
	pending.Status = domain.StatusPending
	pending.StartTime = nil
	pending.EndTime = nil
	pending.LaunchExecutionRef = ""
	pending.ExternalAnalysisID = ""

	encoded, err := json.Marshal(FromDomain(pending))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var keys map[string]any
	if err := json.Unmarshal(encoded, &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"startTime", "endTime", "launchExecutionRef", "externalAnalysisId"} {
		if _, present := keys[key]; present {
			t.Fatalf("expected %q to be omitted when unset: %s", key, encoded)
		}
	}
	for _, key := range []string{"id", "name", "inputs", "engineParameters", "tags", "status", "submissionTime"} {
		if _, present := keys[key]; !present {
			t.Fatalf("expected %q to be present: %s", key, encoded)
		}
	}

	var parsed Analysis
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(pending, parsed.ToDomain()); diff != "" {
		t.Fatalf("round trip with unset optionals lost fields (-want +got):\n%s", diff)
	}
}

func TestAnalysisUsesCamelCaseAliases(t *testing.T) {
	encoded, err := json.Marshal(FromDomain(testDomainAnalysis()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(encoded)
	for _, alias := range []string{
		`"submissionTime"`, `"startTime"`, `"endTime"`,
		`"launchExecutionRef"`, `"externalAnalysisId"`,
		`"pipelineId"`, `"projectId"`, `"outputUri"`, `"logsUri"`,
	} {
		if !strings.Contains(body, alias) {
			t.Fatalf("expected alias %s in payload: %s", alias, body)
		}
	}
}
