// Package wire holds the external representation of analysis records, as
// served by the HTTP API and carried in state-change events. Field names
// are camelCase aliases of the internal record; unset optional fields are
// omitted.
package wire

import (
	"time"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

type EngineParameters struct {
	PipelineID string `json:"pipelineId"`
	ProjectID  string `json:"projectId"`
	OutputURI  string `json:"outputUri"`
	LogsURI    string `json:"logsUri"`
}

type Analysis struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Inputs             map[string]any   `json:"inputs"`
	EngineParameters   EngineParameters `json:"engineParameters"`
	Tags               map[string]any   `json:"tags"`
	Status             string           `json:"status"`
	SubmissionTime     time.Time        `json:"submissionTime"`
	StartTime          *time.Time       `json:"startTime,omitempty"`
	EndTime            *time.Time       `json:"endTime,omitempty"`
	LaunchExecutionRef string           `json:"launchExecutionRef,omitempty"`
	ExternalAnalysisID string           `json:"externalAnalysisId,omitempty"`
}

func FromDomain(analysis domain.Analysis) Analysis {
	return Analysis{
		ID:     analysis.ID,
		Name:   analysis.Name,
		Inputs: analysis.Inputs.Clone(),
		EngineParameters: EngineParameters{
			PipelineID: analysis.EngineParameters.PipelineID,
			ProjectID:  analysis.EngineParameters.ProjectID,
			OutputURI:  analysis.EngineParameters.OutputURI,
			LogsURI:    analysis.EngineParameters.LogsURI,
		},
		Tags:               analysis.Tags.Clone(),
		Status:             string(analysis.Status),
		SubmissionTime:     analysis.SubmissionTime,
		StartTime:          analysis.StartTime,
		EndTime:            analysis.EndTime,
		LaunchExecutionRef: analysis.LaunchExecutionRef,
		ExternalAnalysisID: analysis.ExternalAnalysisID,
	}
}

func (a Analysis) ToDomain() domain.Analysis {
	return domain.Analysis{
		ID:     a.ID,
		Name:   a.Name,
		Inputs: domain.Metadata(a.Inputs).Clone(),
		EngineParameters: domain.EngineParameters{
			PipelineID: a.EngineParameters.PipelineID,
			ProjectID:  a.EngineParameters.ProjectID,
			OutputURI:  a.EngineParameters.OutputURI,
			LogsURI:    a.EngineParameters.LogsURI,
		},
		Tags:               domain.Metadata(a.Tags).Clone(),
		Status:             domain.Status(a.Status),
		SubmissionTime:     a.SubmissionTime,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		LaunchExecutionRef: a.LaunchExecutionRef,
		ExternalAnalysisID: a.ExternalAnalysisID,
	}
}
