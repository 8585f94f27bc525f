package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisIDPrefix namespaces analysis identifiers.
const AnalysisIDPrefix = "iwa"

var (
	uuid4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	uriPattern   = regexp.MustCompile(`^(?:s3|icav2)://\S+$`)
)

// EngineParameters identify where and how the platform runs the pipeline.
type EngineParameters struct {
	PipelineID string
	ProjectID  string
	OutputURI  string
	LogsURI    string
}

func (p EngineParameters) Validate() error {
	if !uuid4Pattern.MatchString(strings.ToLower(strings.TrimSpace(p.PipelineID))) {
		return fmt.Errorf("pipeline id %q is not a valid uuid", p.PipelineID)
	}
	if !uuid4Pattern.MatchString(strings.ToLower(strings.TrimSpace(p.ProjectID))) {
		return fmt.Errorf("project id %q is not a valid uuid", p.ProjectID)
	}
	if !uriPattern.MatchString(strings.TrimSpace(p.OutputURI)) {
		return fmt.Errorf("output uri %q must start with s3:// or icav2://", p.OutputURI)
	}
	if !uriPattern.MatchString(strings.TrimSpace(p.LogsURI)) {
		return fmt.Errorf("logs uri %q must start with s3:// or icav2://", p.LogsURI)
	}
	return nil
}

// Analysis is one submitted (or about-to-be-submitted) execution of a named
// pipeline on the external platform.
type Analysis struct {
	ID               string
	Name             string
	Inputs           Metadata
	EngineParameters EngineParameters
	Tags             Metadata
	Status           Status
	SubmissionTime   time.Time
	StartTime        *time.Time
	EndTime          *time.Time

	// LaunchExecutionRef identifies the asynchronous launch operation.
	// Set once at launch time.
	LaunchExecutionRef string

	// ExternalAnalysisID is assigned by the platform once it acknowledges
	// the launch. Write-once: never overwritten after first set.
	ExternalAnalysisID string
}

// NewAnalysisID allocates a namespaced, time-ordered identifier.
// UUIDv7 strings sort lexicographically by creation time.
func NewAnalysisID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("allocate analysis id: %w", err)
	}
	return AnalysisIDPrefix + "." + id.String(), nil
}

// ValidAnalysisID reports whether the id carries the analysis namespace.
func ValidAnalysisID(id string) bool {
	rest, ok := strings.CutPrefix(id, AnalysisIDPrefix+".")
	return ok && rest != ""
}

func (a Analysis) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("analysis id is required")
	}
	if !ValidAnalysisID(a.ID) {
		return fmt.Errorf("analysis id %q is not in the %s namespace", a.ID, AnalysisIDPrefix)
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("analysis name is required")
	}
	if NormalizeStatus(string(a.Status)) == "" {
		return fmt.Errorf("unknown status %q", a.Status)
	}
	if a.SubmissionTime.IsZero() {
		return errors.New("submission time is required")
	}
	return a.EngineParameters.Validate()
}
