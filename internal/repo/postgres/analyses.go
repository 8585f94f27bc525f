package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/repo"
)

const analysisColumns = `analysis_id, name, inputs, pipeline_id, project_id, output_uri, logs_uri,
	tags, status, submission_time, start_time, end_time, launch_execution_ref, external_analysis_id`

type AnalysisStore struct {
	db DB
}

func NewAnalysisStore(db DB) *AnalysisStore {
	if db == nil {
		return nil
	}
	return &AnalysisStore{db: db}
}

func (s *AnalysisStore) Create(ctx context.Context, analysis domain.Analysis) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("analysis store not initialized")
	}
	if err := analysis.Validate(); err != nil {
		return err
	}
	inputsJSON, err := encodeMetadata(analysis.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	tagsJSON, err := encodeMetadata(analysis.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO analyses (
			analysis_id,
			name,
			inputs,
			pipeline_id,
			project_id,
			output_uri,
			logs_uri,
			tags,
			status,
			submission_time,
			start_time,
			end_time,
			launch_execution_ref,
			external_analysis_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		strings.TrimSpace(analysis.ID),
		strings.TrimSpace(analysis.Name),
		inputsJSON,
		strings.TrimSpace(analysis.EngineParameters.PipelineID),
		strings.TrimSpace(analysis.EngineParameters.ProjectID),
		strings.TrimSpace(analysis.EngineParameters.OutputURI),
		strings.TrimSpace(analysis.EngineParameters.LogsURI),
		tagsJSON,
		string(analysis.Status),
		analysis.SubmissionTime.UTC(),
		nullTime(analysis.StartTime),
		nullTime(analysis.EndTime),
		nullIfEmpty(analysis.LaunchExecutionRef),
		nullIfEmpty(analysis.ExternalAnalysisID),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", handleConflict(err))
	}
	return nil
}

func (s *AnalysisStore) Get(ctx context.Context, id string) (domain.Analysis, error) {
	if s == nil || s.db == nil {
		return domain.Analysis{}, fmt.Errorf("analysis store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Analysis{}, fmt.Errorf("analysis id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE analysis_id = $1`,
		id,
	)
	return scanAnalysis(rowScanner{row})
}

func (s *AnalysisStore) GetByName(ctx context.Context, name string) (domain.Analysis, error) {
	if s == nil || s.db == nil {
		return domain.Analysis{}, fmt.Errorf("analysis store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Analysis{}, fmt.Errorf("analysis name is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE name = $1`,
		name,
	)
	return scanAnalysis(rowScanner{row})
}

func (s *AnalysisStore) Update(ctx context.Context, analysis domain.Analysis) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("analysis store not initialized")
	}
	if err := analysis.Validate(); err != nil {
		return err
	}
	inputsJSON, err := encodeMetadata(analysis.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	tagsJSON, err := encodeMetadata(analysis.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE analyses SET
			inputs = $1,
			tags = $2,
			status = $3,
			start_time = $4,
			end_time = $5,
			launch_execution_ref = $6,
			external_analysis_id = $7
		 WHERE analysis_id = $8`,
		inputsJSON,
		tagsJSON,
		string(analysis.Status),
		nullTime(analysis.StartTime),
		nullTime(analysis.EndTime),
		nullIfEmpty(analysis.LaunchExecutionRef),
		nullIfEmpty(analysis.ExternalAnalysisID),
		strings.TrimSpace(analysis.ID),
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *AnalysisStore) List(ctx context.Context, filter repo.AnalysisFilter) ([]domain.Analysis, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("analysis store not initialized")
	}
	args := make([]any, 0, 2)
	query := `SELECT ` + analysisColumns + ` FROM analyses`

	clauses := make([]string, 0, 2)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Names) > 0 {
		args = append(args, filter.Names)
		clauses = append(clauses, fmt.Sprintf("name = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY analysis_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]domain.Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return analyses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// rowScanner adapts *sql.Row so Get and List share one scan path.
type rowScanner struct {
	row *sql.Row
}

func (r rowScanner) Scan(dest ...any) error {
	return r.row.Scan(dest...)
}

func scanAnalysis(s scanner) (domain.Analysis, error) {
	var analysis domain.Analysis
	var inputsJSON, tagsJSON []byte
	var status string
	var startTime, endTime sql.NullTime
	var launchRef, externalID sql.NullString
	err := s.Scan(
		&analysis.ID,
		&analysis.Name,
		&inputsJSON,
		&analysis.EngineParameters.PipelineID,
		&analysis.EngineParameters.ProjectID,
		&analysis.EngineParameters.OutputURI,
		&analysis.EngineParameters.LogsURI,
		&tagsJSON,
		&status,
		&analysis.SubmissionTime,
		&startTime,
		&endTime,
		&launchRef,
		&externalID,
	)
	if err != nil {
		return domain.Analysis{}, handleNotFound(err)
	}
	analysis.Status = domain.Status(status)
	if startTime.Valid {
		started := startTime.Time.UTC()
		analysis.StartTime = &started
	}
	if endTime.Valid {
		ended := endTime.Time.UTC()
		analysis.EndTime = &ended
	}
	if launchRef.Valid {
		analysis.LaunchExecutionRef = launchRef.String
	}
	if externalID.Valid {
		analysis.ExternalAnalysisID = externalID.String
	}
	inputs, err := decodeMetadata(inputsJSON)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("decode inputs: %w", err)
	}
	tags, err := decodeMetadata(tagsJSON)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("decode tags: %w", err)
	}
	analysis.Inputs = inputs
	analysis.Tags = tags
	return analysis, nil
}
