package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/events"
	"github.com/projetosombra/sombra-api/internal/service"
	"github.com/projetosombra/sombra-api/internal/store"
)

type fakeTaskManager struct {
	tasks map[uuid.UUID]*domain.Task

	createErr  error
	updateErr  error
	analyzeErr error

	created     []*domain.Task
	updated     []service.UpdateTaskInput
	analyzed    []uuid.UUID
	staleCalls  []time.Duration
	staleFailed int
}

func newFakeTaskManager() *fakeTaskManager {
	return &fakeTaskManager{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (f *fakeTaskManager) CreateTask(ctx context.Context, clientName string, saleswomanID uuid.UUID, audioFilePath string) (*domain.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	task, err := domain.NewTask(clientName, saleswomanID, audioFilePath)
	if err != nil {
		return nil, err
	}
	f.tasks[task.ID] = task
	f.created = append(f.created, task)
	return task, nil
}

func (f *fakeTaskManager) UpdateTask(ctx context.Context, taskID uuid.UUID, input service.UpdateTaskInput) (*domain.Task, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	f.updated = append(f.updated, input)
	task.Status = input.Status
	return task, nil
}

func (f *fakeTaskManager) RequestAnalysis(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	f.analyzed = append(f.analyzed, taskID)
	task.Status = domain.TaskStatusAnalyzing
	return task, nil
}

func (f *fakeTaskManager) FailStaleTasks(ctx context.Context, timeout time.Duration) (int, error) {
	f.staleCalls = append(f.staleCalls, timeout)
	return f.staleFailed, nil
}

func (f *fakeTaskManager) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

type fakeStreamer struct {
	events chan events.Event
}

func (f *fakeStreamer) Subscribe(ctx context.Context) *events.Subscription {
	return &events.Subscription{ID: uuid.New(), Events: f.events}
}

func (f *fakeStreamer) Unsubscribe(sub *events.Subscription) {}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) RenderTaskAnalysis(task *domain.Task) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

func newTaskRouter(t *testing.T, manager *fakeTaskManager, streamer TaskStreamer, renderer AnalysisRenderer) (chi.Router, string) {
	t.Helper()
	uploadsDir := t.TempDir()
	h := NewTaskHandler(manager, streamer, renderer, uploadsDir, 60*time.Minute, nil)

	r := chi.NewRouter()
	r.Post("/api/tasks", h.Create)
	r.Get("/api/tasks/stream", h.Stream)
	r.Get("/api/tasks/{id}", h.Get)
	r.Get("/api/tasks/{id}/audio", h.Audio)
	r.Get("/api/tasks/{id}/pdf", h.PDF)
	r.Post("/api/tasks/{id}/analyze", h.Analyze)
	r.Patch("/api/tasks/{id}/complete", h.Complete)
	r.Post("/api/tasks/maintenance/fail-stale", h.FailStale)
	return r, uploadsDir
}

func multipartUpload(t *testing.T, clientName, saleswomanID string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("audio", "call-recording.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio bytes"))
	require.NoError(t, err)

	require.NoError(t, w.WriteField("clientName", clientName))
	require.NoError(t, w.WriteField("saleswomanId", saleswomanID))
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestTaskHandlerCreate(t *testing.T) {
	t.Parallel()

	t.Run("accepts upload and stores the file", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		router, uploadsDir := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		body, contentType := multipartUpload(t, "Cliente Teste", uuid.New().String())
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var task domain.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
		assert.Equal(t, "Cliente Teste", task.ClientName)
		assert.Equal(t, domain.TaskStatusPending, task.Status)

		require.Len(t, manager.created, 1)
		saved := manager.created[0].AudioFilePath
		assert.Equal(t, uploadsDir, filepath.Dir(saved))
		assert.Equal(t, ".mp3", filepath.Ext(saved))
		content, err := os.ReadFile(saved)
		require.NoError(t, err)
		assert.Equal(t, "fake audio bytes", string(content))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		body, contentType := multipartUpload(t, "", uuid.New().String())
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, manager.created)
	})

	t.Run("removes the file when creation fails", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		manager.createErr = store.ErrSaleswomanNotFound
		router, uploadsDir := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		body, contentType := multipartUpload(t, "Cliente Teste", uuid.New().String())
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		entries, err := os.ReadDir(uploadsDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestTaskHandlerComplete(t *testing.T) {
	t.Parallel()

	t.Run("applies a webhook transition", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		payload := `{"status":"TRANSCRIBING"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+task.ID.String()+"/complete", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, manager.updated, 1)
		assert.Equal(t, domain.TaskStatusTranscribing, manager.updated[0].Status)
	})

	t.Run("unknown task responds 404", func(t *testing.T) {
		t.Parallel()
		router, _ := newTaskRouter(t, newFakeTaskManager(), &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+uuid.New().String()+"/complete",
			strings.NewReader(`{"status":"COMPLETED"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("backward transition responds 409", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		manager.updateErr = &service.StateConflictError{
			CurrentStatus:   domain.TaskStatusCompleted,
			RequestedStatus: domain.TaskStatusTranscribing,
			Operation:       "update",
		}
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+task.ID.String()+"/complete",
			strings.NewReader(`{"status":"TRANSCRIBING"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing status responds 400", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+task.ID.String()+"/complete",
			strings.NewReader(`{"transcription":"olá"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, manager.updated)
	})
}

func TestTaskHandlerStream(t *testing.T) {
	t.Parallel()

	streamer := &fakeStreamer{events: make(chan events.Event, 4)}
	task, err := domain.NewTask("Cliente", uuid.New(), "/tmp/a.mp3")
	require.NoError(t, err)

	hello := events.Event{Type: events.EventTypeConnected}
	update, err := events.NewTaskUpdateEvent(task)
	require.NoError(t, err)
	streamer.events <- hello
	streamer.events <- update
	close(streamer.events)

	router, _ := newTaskRouter(t, newFakeTaskManager(), streamer, &fakeRenderer{})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/stream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 2)
	for _, frame := range frames {
		assert.True(t, strings.HasPrefix(frame, "data: "))
	}

	var first events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	assert.Equal(t, events.EventTypeConnected, first.Type)

	var second events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &second))
	assert.Equal(t, events.EventTypeTaskUpdate, second.Type)
	assert.Contains(t, string(second.Task), task.ID.String())
}

func TestTaskHandlerAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("accepts an eligible task", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID.String()+"/analyze", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []uuid.UUID{task.ID}, manager.analyzed)
	})

	t.Run("maps a worker dispatch failure to 502", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		manager.analyzeErr = service.ErrWorkerDispatch
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID.String()+"/analyze", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestTaskHandlerFailStale(t *testing.T) {
	t.Parallel()

	manager := newFakeTaskManager()
	manager.staleFailed = 3
	router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/maintenance/fail-stale", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"failedTasks":3}`, rec.Body.String())
	assert.Equal(t, []time.Duration{60 * time.Minute}, manager.staleCalls)
}

func TestTaskHandlerPDF(t *testing.T) {
	t.Parallel()

	t.Run("serves the rendered report", func(t *testing.T) {
		t.Parallel()
		manager := newFakeTaskManager()
		task, err := manager.CreateTask(context.Background(), "Cliente", uuid.New(), "/tmp/a.mp3")
		require.NoError(t, err)
		router, _ := newTaskRouter(t, manager, &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID.String()+"/pdf", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	})

	t.Run("invalid id responds 400", func(t *testing.T) {
		t.Parallel()
		router, _ := newTaskRouter(t, newFakeTaskManager(), &fakeStreamer{}, &fakeRenderer{})

		req := httptest.NewRequest(http.MethodGet, "/api/tasks/not-a-uuid/pdf", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
