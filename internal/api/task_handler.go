package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/events"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/service"
)

// maxUploadBytes bounds a single audio upload (200 MiB).
const maxUploadBytes = 200 << 20

// sseHeartbeatInterval paces keep-alive comments so idle stream connections
// survive proxies with read timeouts.
const sseHeartbeatInterval = 30 * time.Second

// TaskManager is the slice of the task service the handler needs.
type TaskManager interface {
	CreateTask(ctx context.Context, clientName string, saleswomanID uuid.UUID, audioFilePath string) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, input service.UpdateTaskInput) (*domain.Task, error)
	RequestAnalysis(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	FailStaleTasks(ctx context.Context, timeout time.Duration) (int, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
}

// TaskStreamer is the subscriber side of the event broadcaster.
type TaskStreamer interface {
	Subscribe(ctx context.Context) *events.Subscription
	Unsubscribe(sub *events.Subscription)
}

// AnalysisRenderer renders a task's analysis report.
type AnalysisRenderer interface {
	RenderTaskAnalysis(task *domain.Task) ([]byte, error)
}

// TaskHandler serves the task endpoints: upload, live stream, webhook,
// analysis trigger, downloads, and the stale sweep.
type TaskHandler struct {
	tasks        TaskManager
	streamer     TaskStreamer
	renderer     AnalysisRenderer
	uploadsDir   string
	staleTimeout time.Duration
	logger       *slog.Logger
}

// NewTaskHandler creates a TaskHandler. If logger is nil, the default
// logger is used.
func NewTaskHandler(
	tasks TaskManager,
	streamer TaskStreamer,
	renderer AnalysisRenderer,
	uploadsDir string,
	staleTimeout time.Duration,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:        tasks,
		streamer:     streamer,
		renderer:     renderer,
		uploadsDir:   uploadsDir,
		staleTimeout: staleTimeout,
		logger:       logger.With(slog.String("component", "task_handler")),
	}
}

// Create handles POST /api/tasks: a multipart upload with the audio file,
// clientName, and saleswomanId. Responds 202 with the task; a worker
// dispatch failure still responds 202 with the task already FAILED.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	clientName := strings.TrimSpace(r.FormValue("clientName"))
	saleswomanID, err := uuid.Parse(r.FormValue("saleswomanId"))
	if clientName == "" || err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "clientName and saleswomanId are required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "audio file is required")
		return
	}
	defer func() { _ = file.Close() }()

	audioPath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		log.Error("failed to store uploaded audio", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), clientName, saleswomanID, audioPath)
	if err != nil {
		// The upload file is orphaned on failure; remove it.
		_ = os.Remove(audioPath)
		respondServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, task)
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Stream handles GET /api/tasks/stream: a long-lived SSE connection that
// backfills active tasks and then pushes every task change.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.streamer.Subscribe(r.Context())
	defer h.streamer.Unsubscribe(sub)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error("failed to encode stream event", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Complete handles PATCH /api/tasks/{id}/complete: the worker webhook
// applying a pipeline transition. Gated by the internal API key.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var input service.UpdateTaskInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if input.Status == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "status is required")
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), taskID, input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Analyze handles POST /api/tasks/{id}/analyze.
func (h *TaskHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.RequestAnalysis(r.Context(), taskID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, task)
}

// FailStale handles POST /api/tasks/maintenance/fail-stale, the manual
// trigger for the stale sweep.
func (h *TaskHandler) FailStale(w http.ResponseWriter, r *http.Request) {
	failed, err := h.tasks.FailStaleTasks(r.Context(), h.staleTimeout)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]int{"failedTasks": failed})
}

// Audio handles GET /api/tasks/{id}/audio, serving the uploaded recording.
func (h *TaskHandler) Audio(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if _, err := os.Stat(task.AudioFilePath); err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Audio file not found")
		return
	}
	http.ServeFile(w, r, task.AudioFilePath)
}

// PDF handles GET /api/tasks/{id}/pdf, rendering the analysis report on
// demand.
func (h *TaskHandler) PDF(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	content, err := h.renderer.RenderTaskAnalysis(task)
	if err != nil {
		log.Error("failed to render task analysis PDF",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task has no renderable analysis")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="analise-%s.pdf"`, taskID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// saveUpload stores the uploaded audio in the uploads directory under a
// unique name, preserving the original extension.
func (h *TaskHandler) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating uploads directory: %w", err)
	}

	ext := filepath.Ext(originalName)
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.New().String()[:8], ext)
	path := filepath.Join(h.uploadsDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return path, nil
}

// parseIDParam extracts and validates the {id} route parameter.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid identifier")
		return uuid.Nil, false
	}
	return id, true
}
