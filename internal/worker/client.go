// Package worker is the HTTP client for the external AI worker that runs
// transcription, diarization, analysis, and summary generation. The worker
// calls back into this service's webhook as each pipeline stage completes.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

// ErrMissingOpenAIKey is returned when a summary is requested without an
// OPENAI_API_KEY configured. The worker would reject the call anyway; failing
// locally keeps the error actionable.
var ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY is not configured")

// Client talks to the external worker over HTTP. Requests are fire-and-wait
// with no retries; the stale-task sweep catches jobs the worker accepted but
// never finished.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a worker client for the given base URL. If logger is
// nil, the default logger is used.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "worker_client")),
	}
}

type processTaskRequest struct {
	TaskID   string            `json:"task_id"`
	FilePath string            `json:"file_path"`
	Config   map[string]string `json:"config"`
}

type analyzeTaskRequest struct {
	TaskID        string            `json:"task_id"`
	Transcription string            `json:"transcription"`
	Config        map[string]string `json:"config"`
}

type generateSummaryRequest struct {
	Name           string   `json:"name"`
	Transcriptions []string `json:"transcriptions"`
	OpenAIAPIKey   string   `json:"openai_api_key"`
}

type generateSummaryResponse struct {
	Summary string `json:"summary"`
}

// NotifyProcessTask asks the worker to start the transcription pipeline for
// an uploaded audio file. Only allow-listed settings are forwarded.
func (c *Client) NotifyProcessTask(ctx context.Context, taskID uuid.UUID, filePath string, settings domain.Settings) error {
	req := processTaskRequest{
		TaskID:   taskID.String(),
		FilePath: filePath,
		Config:   settings.WorkerView(),
	}
	return c.post(ctx, "/process-task", req, nil)
}

// NotifyAnalyzeTask asks the worker to run the analysis stage on an already
// transcribed task.
func (c *Client) NotifyAnalyzeTask(ctx context.Context, taskID uuid.UUID, transcription string, settings domain.Settings) error {
	req := analyzeTaskRequest{
		TaskID:        taskID.String(),
		Transcription: transcription,
		Config:        settings.WorkerView(),
	}
	return c.post(ctx, "/analyze-task", req, nil)
}

// GenerateConsolidatedSummary asks the worker to synthesize one performance
// summary from a batch of call transcriptions. Unlike the pipeline
// notifications this call is synchronous and returns the summary text.
func (c *Client) GenerateConsolidatedSummary(ctx context.Context, name string, transcriptions []string, settings domain.Settings) (string, error) {
	apiKey := settings[domain.SettingOpenAIAPIKey]
	if apiKey == "" {
		return "", ErrMissingOpenAIKey
	}

	req := generateSummaryRequest{
		Name:           name,
		Transcriptions: transcriptions,
		OpenAIAPIKey:   apiKey,
	}

	var resp generateSummaryResponse
	if err := c.post(ctx, "/generate-summary", req, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// post sends a JSON request and optionally decodes a JSON response. Non-2xx
// responses become errors carrying an excerpt of the body.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("worker request failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("calling worker %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("worker returned error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("worker %s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding worker response from %s: %w", path, err)
		}
	}

	return nil
}
