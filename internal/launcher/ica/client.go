// Package ica launches and aborts pipeline executions through the workflow
// execution endpoint of the ICA platform.
package ica

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/wesman-labs/wesman-go/internal/domain"
	"github.com/wesman-labs/wesman-go/internal/platform/env"
)

type Config struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	requestTimeout, err := env.Duration("WESMAN_ICA_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL:        env.String("WESMAN_ICA_BASE_URL", ""),
		TokenURL:       env.String("WESMAN_ICA_TOKEN_URL", ""),
		ClientID:       env.String("WESMAN_ICA_CLIENT_ID", ""),
		ClientSecret:   env.String("WESMAN_ICA_CLIENT_SECRET", ""),
		RequestTimeout: requestTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("WESMAN_ICA_BASE_URL is required")
	}
	if strings.Contains(c.BaseURL, " ") {
		return fmt.Errorf("base url must not contain spaces: %q", c.BaseURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("WESMAN_ICA_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// Client submits launch and abort requests. When a token endpoint is
// configured, requests carry an OAuth2 client-credentials bearer token.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if strings.TrimSpace(cfg.TokenURL) != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = creds.Client(ctx)
		httpClient.Timeout = cfg.RequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}, nil
}

type launchRequest struct {
	Name             string             `json:"name"`
	Inputs           map[string]any     `json:"inputs"`
	EngineParameters launchEngineParams `json:"engineParameters"`
	Tags             map[string]any     `json:"tags"`
}

type launchEngineParams struct {
	PipelineID string `json:"pipelineId"`
	ProjectID  string `json:"projectId"`
	OutputURI  string `json:"outputUri"`
	LogsURI    string `json:"logsUri"`
}

type launchResponse struct {
	ExecutionID string `json:"executionId"`
}

// Launch starts the analysis on the platform and returns the reference of
// the asynchronous launch execution. It does not wait for the analysis to
// be acknowledged; the platform reports progress through its own events.
func (c *Client) Launch(ctx context.Context, analysis domain.Analysis) (string, error) {
	body := launchRequest{
		Name:   analysis.Name,
		Inputs: analysis.Inputs,
		EngineParameters: launchEngineParams{
			PipelineID: analysis.EngineParameters.PipelineID,
			ProjectID:  analysis.EngineParameters.ProjectID,
			OutputURI:  analysis.EngineParameters.OutputURI,
			LogsURI:    analysis.EngineParameters.LogsURI,
		},
		Tags: FlattenUserTags(analysis.Tags),
	}

	var parsed launchResponse
	if err := c.post(ctx, "/v1/executions", body, &parsed); err != nil {
		return "", fmt.Errorf("launch %s: %w", analysis.ID, err)
	}
	if strings.TrimSpace(parsed.ExecutionID) == "" {
		return "", fmt.Errorf("launch %s: platform returned no execution id", analysis.ID)
	}
	return parsed.ExecutionID, nil
}

// Abort asks the platform to stop the analysis. The caller does not wait
// for confirmation; the terminal ABORTED transition arrives later through
// the platform's state-change notification.
func (c *Client) Abort(ctx context.Context, analysis domain.Analysis) error {
	body := map[string]string{
		"projectId":  analysis.EngineParameters.ProjectID,
		"analysisId": analysis.ExternalAnalysisID,
	}
	if err := c.post(ctx, "/v1/executions:abort", body, nil); err != nil {
		return fmt.Errorf("abort %s: %w", analysis.ID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
