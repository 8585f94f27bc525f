package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/platform/objectstore"
	"github.com/wesman-labs/wesman-go/internal/repo"
	"github.com/wesman-labs/wesman-go/internal/service/analyses"
	"github.com/wesman-labs/wesman-go/internal/wire"
)

const (
	defaultRowsPerPage = 100
	maxRowsPerPage     = 1000
)

type analysisAPI struct {
	logger  *slog.Logger
	service *analyses.Service
	objects *minio.Client
}

func newAnalysisAPI(logger *slog.Logger, service *analyses.Service, objects *minio.Client) *analysisAPI {
	return &analysisAPI{
		logger:  logger,
		service: service,
		objects: objects,
	}
}

func (api *analysisAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analysis", api.handleList)
	mux.HandleFunc("GET /api/v1/analysis/{$}", api.handleList)
	mux.HandleFunc("POST /api/v1/analysis", api.handleCreate)
	mux.HandleFunc("POST /api/v1/analysis/{$}", api.handleCreate)
	mux.HandleFunc("GET /api/v1/analysis/{analysis_id}", api.handleGet)
	mux.HandleFunc("GET /api/v1/analysis/{analysis_id}/logs", api.handleLogs)
	mux.HandleFunc("PATCH /api/v1/analysis/{analysis_id}", api.handlePatch)
}

type createRequest struct {
	Name             string                `json:"name"`
	Inputs           map[string]any        `json:"inputs"`
	EngineParameters wire.EngineParameters `json:"engineParameters"`
	Tags             map[string]any        `json:"tags"`
}

type patchRequest struct {
	Status             string `json:"status"`
	ExternalAnalysisID string `json:"externalAnalysisId"`
}

type pageLinks struct {
	Previous *string `json:"previous"`
	Next     *string `json:"next"`
}

type pageMeta struct {
	Page        int `json:"page"`
	RowsPerPage int `json:"rowsPerPage"`
	Count       int `json:"count"`
}

type listResponse struct {
	Links      pageLinks       `json:"links"`
	Pagination pageMeta        `json:"pagination"`
	Results    []wire.Analysis `json:"results"`
}

func (api *analysisAPI) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := 1
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_page", fmt.Sprintf("page must be a positive integer (got %q)", raw))
			return
		}
		page = parsed
	}
	rowsPerPage := defaultRowsPerPage
	if raw := strings.TrimSpace(query.Get("rowsPerPage")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_rows_per_page", fmt.Sprintf("rowsPerPage must be a positive integer (got %q)", raw))
			return
		}
		if parsed > maxRowsPerPage {
			parsed = maxRowsPerPage
		}
		rowsPerPage = parsed
	}

	filter := repo.AnalysisFilter{}
	for _, raw := range query["status"] {
		status := domain.NormalizeStatus(raw)
		if status == "" {
			api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_status", fmt.Sprintf("unknown status %q", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range query["name"] {
		name := strings.TrimSpace(raw)
		if name != "" {
			filter.Names = append(filter.Names, name)
		}
	}

	records, err := api.service.List(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	total := len(records)
	start := (page - 1) * rowsPerPage
	end := start + rowsPerPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	results := make([]wire.Analysis, 0, end-start)
	for _, record := range records[start:end] {
		results = append(results, wire.FromDomain(record))
	}

	api.writeJSON(w, http.StatusOK, listResponse{
		Links: pageLinks{
			Previous: pageLink(r.URL, page-1, rowsPerPage, page > 1),
			Next:     pageLink(r.URL, page+1, rowsPerPage, end < total),
		},
		Pagination: pageMeta{
			Page:        page,
			RowsPerPage: rowsPerPage,
			Count:       total,
		},
		Results: results,
	})
}

func (api *analysisAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	created, err := api.service.Create(r.Context(), analyses.CreateInput{
		Name:   req.Name,
		Inputs: domain.Metadata(req.Inputs),
		EngineParameters: domain.EngineParameters{
			PipelineID: req.EngineParameters.PipelineID,
			ProjectID:  req.EngineParameters.ProjectID,
			OutputURI:  req.EngineParameters.OutputURI,
			LogsURI:    req.EngineParameters.LogsURI,
		},
		Tags: domain.Metadata(req.Tags),
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, wire.FromDomain(created))
}

func (api *analysisAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := api.analysisID(w, r)
	if !ok {
		return
	}

	analysis, err := api.service.Get(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, wire.FromDomain(analysis))
}

// handlePatch serves both the status update and, with the :abort suffix on
// the path value, the abort request.
func (api *analysisAPI) handlePatch(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("analysis_id")
	if id, found := strings.CutSuffix(raw, ":abort"); found {
		api.handleAbort(w, r, id)
		return
	}

	id, ok := sanitizeAnalysisID(raw)
	if !ok {
		api.writeError(w, r, http.StatusNotFound, "analysis_not_found")
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	updated, err := api.service.UpdateStatus(r.Context(), id, req.Status, req.ExternalAnalysisID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, wire.FromDomain(updated))
}

func (api *analysisAPI) handleAbort(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := sanitizeAnalysisID(rawID)
	if !ok {
		api.writeError(w, r, http.StatusNotFound, "analysis_not_found")
		return
	}

	message, err := api.service.Abort(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

type logFileResponse struct {
	Name         string    `json:"name"`
	URI          string    `json:"uri"`
	SizeBytes    int64     `json:"sizeBytes"`
	LastModified time.Time `json:"lastModified"`
	Report       bool      `json:"report"`
}

func (api *analysisAPI) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := api.analysisID(w, r)
	if !ok {
		return
	}
	if api.objects == nil {
		api.writeError(w, r, http.StatusServiceUnavailable, "object_store_unconfigured")
		return
	}

	analysis, err := api.service.Get(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	logsURI := analysis.EngineParameters.LogsURI
	if !strings.HasPrefix(logsURI, "s3://") {
		api.writeErrorDetail(w, r, http.StatusBadRequest, "logs_not_listable", fmt.Sprintf("logs uri %q is not on the s3 scheme", logsURI))
		return
	}

	files, err := objectstore.ListLogFiles(r.Context(), api.objects, logsURI)
	if err != nil {
		api.logger.Error("list log files", "analysis_id", id, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}

	out := make([]logFileResponse, 0, len(files))
	for _, file := range files {
		out = append(out, logFileResponse{
			Name:         file.Name,
			URI:          file.URI,
			SizeBytes:    file.SizeBytes,
			LastModified: file.LastModified,
			Report:       file.Report,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"id":      analysis.ID,
		"logsUri": logsURI,
		"files":   out,
	})
}

func (api *analysisAPI) analysisID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := sanitizeAnalysisID(r.PathValue("analysis_id"))
	if !ok {
		api.writeError(w, r, http.StatusNotFound, "analysis_not_found")
		return "", false
	}
	return id, true
}

// sanitizeAnalysisID rejects ids outside the analysis namespace before any
// storage lookup. A malformed id can never exist, so it reads as not found.
func sanitizeAnalysisID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if !domain.ValidAnalysisID(id) {
		return "", false
	}
	return id, true
}

func (api *analysisAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analyses.ErrInvalidArgument):
		api.writeErrorDetail(w, r, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "analysis_not_found")
	case errors.Is(err, analyses.ErrNameConflict):
		api.writeErrorDetail(w, r, http.StatusConflict, "name_conflict", err.Error())
	case errors.Is(err, analyses.ErrNotAbortable):
		api.writeErrorDetail(w, r, http.StatusInternalServerError, "not_abortable", err.Error())
	default:
		api.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func (api *analysisAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *analysisAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *analysisAPI) writeErrorDetail(w http.ResponseWriter, r *http.Request, status int, code string, detail string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"detail":     detail,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func pageLink(u *url.URL, page int, rowsPerPage int, present bool) *string {
	if !present {
		return nil
	}
	linked := *u
	query := linked.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("rowsPerPage", strconv.Itoa(rowsPerPage))
	linked.RawQuery = query.Encode()
	link := linked.String()
	return &link
}
