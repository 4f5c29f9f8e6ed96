package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/store"
)

type taskServiceFixture struct {
	svc       *TaskService
	taskStore *fakeTaskStore
	worker    *fakeWorker
	publisher *fakePublisher
}

func newTaskServiceFixture(t *testing.T) (*taskServiceFixture, *domain.Saleswoman) {
	t.Helper()

	taskStore := newFakeTaskStore()
	worker := &fakeWorker{}
	publisher := &fakePublisher{}

	sw, err := domain.NewSaleswoman("Maria Silva", "maria@example.com")
	require.NoError(t, err)
	taskStore.saleswomen[sw.ID] = sw

	svc := NewTaskService(taskStore, worker, &staticSettings{}, publisher, nil)
	return &taskServiceFixture{
		svc:       svc,
		taskStore: taskStore,
		worker:    worker,
		publisher: publisher,
	}, sw
}

func seedTask(t *testing.T, f *taskServiceFixture, sw *domain.Saleswoman, status domain.TaskStatus) *domain.Task {
	t.Helper()

	task, err := domain.NewTask("Cliente", sw.ID, "/uploads/a.mp3")
	require.NoError(t, err)
	task.Status = status
	require.NoError(t, f.taskStore.Create(context.Background(), task))
	return task
}

func TestCreateTask_DispatchesWorkerAndBroadcasts(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)

	task, err := f.svc.CreateTask(context.Background(), "Cliente A", sw.ID, "/uploads/a.mp3")
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, task.Status)
	require.NotNil(t, task.Saleswoman)
	assert.Equal(t, sw.ID, task.Saleswoman.ID)
	assert.Equal(t, []uuid.UUID{task.ID}, f.worker.processCalls)
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusPending}, f.publisher.statuses())
}

func TestCreateTask_WorkerDown_FailsTaskNotCaller(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	f.worker.processErr = errWorkerDown

	task, err := f.svc.CreateTask(context.Background(), "Cliente A", sw.ID, "/uploads/a.mp3")
	require.NoError(t, err, "creation must not fail the caller on dispatch failure")
	assert.Equal(t, domain.TaskStatusFailed, task.Status)

	// One PENDING broadcast, then the FAILED rebroadcast.
	assert.Equal(t,
		[]domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusFailed},
		f.publisher.statuses())

	view := domain.ParseAnalysis(task.Analysis)
	require.Equal(t, domain.AnalysisKindError, view.Kind)
	assert.Contains(t, view.Error.Error, "connection refused")
}

func TestCreateTask_DispatchAndPersistBothFail_StillReturnsTask(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	f.worker.processErr = errWorkerDown
	f.taskStore.updateErr = errors.New("connection lost")

	task, err := f.svc.CreateTask(context.Background(), "Cliente A", sw.ID, "/uploads/a.mp3")
	require.NoError(t, err)
	require.NotNil(t, task, "the caller must receive the in-memory task even when the FAILED state cannot be persisted")
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
}

func TestUpdateTask_UnknownID_NeverCreates(t *testing.T) {
	t.Parallel()

	f, _ := newTaskServiceFixture(t)
	unknown := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := f.svc.UpdateTask(context.Background(), unknown, UpdateTaskInput{
			Status: domain.TaskStatusTranscribing,
		})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	}
	assert.Empty(t, f.taskStore.tasks)
	assert.Empty(t, f.publisher.snapshots)
}

func TestUpdateTask_StampsServiceClock(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusPending)

	frozen := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return frozen }

	updated, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status: domain.TaskStatusTranscribing,
	})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.Equal(frozen))

	stored, err := f.taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(frozen),
		"the store must persist the service-set timestamp unchanged")
}

func TestUpdateTask_RejectsBackwardTransition(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusCompleted)

	_, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status: domain.TaskStatusTranscribing,
	})

	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.TaskStatusCompleted, conflict.CurrentStatus)
	assert.Equal(t, domain.TaskStatusTranscribing, conflict.RequestedStatus)

	stored, err := f.taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
}

func TestUpdateTask_SameStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusTranscribing)

	updated, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status: domain.TaskStatusTranscribing,
	})
	require.NoError(t, err, "duplicate webhook delivery must not conflict")
	assert.Equal(t, domain.TaskStatusTranscribing, updated.Status)
}

func TestUpdateTask_AppliesTranscriptionAndForwardStatus(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusDiarizing)

	vtt := "00:00.000 --> 00:04.000\n[SPEAKER_00] Olá"
	updated, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status:        domain.TaskStatusTranscribed,
		Transcription: &vtt,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusTranscribed, updated.Status)
	require.NotNil(t, updated.Transcription)
	assert.Equal(t, vtt, *updated.Transcription)
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusTranscribed}, f.publisher.statuses())
}

func TestUpdateTask_MalformedAnalysisStringStoresSentinel(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusAnalyzing)

	// Worker delivered the analysis as a JSON-encoded string that is not
	// itself valid JSON.
	raw, err := json.Marshal("{not valid json")
	require.NoError(t, err)

	updated, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status:   domain.TaskStatusCompleted,
		Analysis: raw,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)

	view := domain.ParseAnalysis(updated.Analysis)
	require.Equal(t, domain.AnalysisKindError, view.Kind)
	assert.Equal(t, domain.AnalysisParseErrorMessage, view.Error.Error)
	assert.Equal(t, "{not valid json", view.Error.Raw)
}

func TestUpdateTask_AnalysisStringContainingJSONIsUnwrapped(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusAnalyzing)

	inner := `{"overallFeedback":{"summary":"boa"},"crucialMoments":[]}`
	raw, err := json.Marshal(inner)
	require.NoError(t, err)

	updated, err := f.svc.UpdateTask(context.Background(), task.ID, UpdateTaskInput{
		Status:   domain.TaskStatusCompleted,
		Analysis: raw,
	})
	require.NoError(t, err)

	view := domain.ParseAnalysis(updated.Analysis)
	assert.Equal(t, domain.AnalysisKindFeedback, view.Kind)
}

func TestRequestAnalysis_RejectsNonTranscribed(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusPending)

	_, err := f.svc.RequestAnalysis(context.Background(), task.ID)

	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "PENDING")

	stored, err := f.taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Empty(t, f.worker.analyzeCalls)
}

func TestRequestAnalysis_RequiresTranscription(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusTranscribed)

	_, err := f.svc.RequestAnalysis(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrMissingTranscription)
}

func TestRequestAnalysis_MovesToAnalyzingAndDispatches(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	task := seedTask(t, f, sw, domain.TaskStatusTranscribed)
	vtt := "[SPEAKER_00] Olá"
	task.Transcription = &vtt
	require.NoError(t, f.taskStore.Update(context.Background(), task))

	updated, err := f.svc.RequestAnalysis(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusAnalyzing, updated.Status)
	assert.Equal(t, []uuid.UUID{task.ID}, f.worker.analyzeCalls)
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusAnalyzing}, f.publisher.statuses())
}

func TestRequestAnalysis_DispatchFailureRollsForwardToFailed(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	f.worker.analyzeErr = errWorkerDown

	task := seedTask(t, f, sw, domain.TaskStatusTranscribed)
	vtt := "[SPEAKER_00] Olá"
	task.Transcription = &vtt
	require.NoError(t, f.taskStore.Update(context.Background(), task))

	failed, err := f.svc.RequestAnalysis(context.Background(), task.ID)
	require.ErrorIs(t, err, ErrWorkerDispatch)
	require.NotNil(t, failed)
	assert.Equal(t, domain.TaskStatusFailed, failed.Status)

	// ANALYZING broadcast first, then the FAILED rebroadcast; never back
	// to TRANSCRIBED.
	assert.Equal(t,
		[]domain.TaskStatus{domain.TaskStatusAnalyzing, domain.TaskStatusFailed},
		f.publisher.statuses())
}

func TestFailStaleTasks_SweepConverges(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)

	stale := seedTask(t, f, sw, domain.TaskStatusTranscribing)
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	stale.Analysis = json.RawMessage(`{"partial":"data"}`)
	require.NoError(t, f.taskStore.Update(context.Background(), stale))

	seedTask(t, f, sw, domain.TaskStatusDiarizing)

	transcribedStale := seedTask(t, f, sw, domain.TaskStatusTranscribed)
	transcribedStale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, f.taskStore.Update(context.Background(), transcribedStale))

	failed, err := f.svc.FailStaleTasks(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, failed, "only in-flight stale tasks are swept")

	swept, err := f.taskStore.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, swept.Status)

	// The error is merged into the existing analysis object.
	var merged map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(swept.Analysis, &merged))
	assert.Contains(t, merged, "error")
	assert.Contains(t, merged, "partial")

	// TRANSCRIBED waits for an operator, not the sweep.
	kept, err := f.taskStore.GetByID(context.Background(), transcribedStale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusTranscribed, kept.Status)

	// Second sweep is a no-op.
	failed, err = f.svc.FailStaleTasks(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, failed)
}

func TestListActiveTasks_ExcludesTerminal(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	seedTask(t, f, sw, domain.TaskStatusPending)
	seedTask(t, f, sw, domain.TaskStatusCompleted)
	seedTask(t, f, sw, domain.TaskStatusFailed)

	active, err := f.svc.ListActiveTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TaskStatusPending, active[0].Status)
}

func TestCreateTask_SettingsLoadFailureFailsTask(t *testing.T) {
	t.Parallel()

	f, sw := newTaskServiceFixture(t)
	f.svc.settings = &staticSettings{err: errors.New("database unavailable")}

	task, err := f.svc.CreateTask(context.Background(), "Cliente A", sw.ID, "/uploads/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Empty(t, f.worker.processCalls)
}
