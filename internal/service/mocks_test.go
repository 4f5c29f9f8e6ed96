package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/store"
)

// fakeTaskStore is an in-memory TaskStore for service tests.
type fakeTaskStore struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*domain.Task
	updateErr error

	// saleswomen joined onto task reads
	saleswomen map[uuid.UUID]*domain.Saleswoman
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:      make(map[uuid.UUID]*domain.Task),
		saleswomen: make(map[uuid.UUID]*domain.Saleswoman),
	}
}

func (f *fakeTaskStore) clone(t *domain.Task) *domain.Task {
	cp := *t
	if sw, ok := f.saleswomen[t.SaleswomanID]; ok {
		swCopy := *sw
		cp.Saleswoman = &swCopy
	}
	return &cp
}

func (f *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return f.clone(task), nil
}

func (f *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	cp := *task
	cp.Saleswoman = nil
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskStore) ListActive(ctx context.Context) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, task := range f.tasks {
		if !task.Terminal() {
			out = append(out, f.clone(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTaskStore) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.InFlight() && task.UpdatedAt.Before(cutoff) {
			out = append(out, f.clone(task))
		}
	}
	return out, nil
}

func (f *fakeTaskStore) ListCompletedBySaleswoman(ctx context.Context, saleswomanID uuid.UUID, requireAnalysis bool, limit int) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.SaleswomanID != saleswomanID || task.Status != domain.TaskStatusCompleted {
			continue
		}
		if requireAnalysis && len(task.Analysis) == 0 {
			continue
		}
		out = append(out, f.clone(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTaskStore) ListUnsummarized(ctx context.Context, saleswomanID uuid.UUID) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.SaleswomanID != saleswomanID || task.Status != domain.TaskStatusCompleted {
			continue
		}
		if len(task.Analysis) == 0 || task.IncludedInSummary {
			continue
		}
		out = append(out, f.clone(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTaskStore) MarkIncludedInSummary(ctx context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if task, ok := f.tasks[id]; ok {
			task.IncludedInSummary = true
		}
	}
	return nil
}

func (f *fakeTaskStore) CountBySaleswoman(ctx context.Context, saleswomanID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, task := range f.tasks {
		if task.SaleswomanID == saleswomanID {
			count++
		}
	}
	return count, nil
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }

// fakeSaleswomanStore is an in-memory SaleswomanStore.
type fakeSaleswomanStore struct {
	mu         sync.Mutex
	saleswomen map[uuid.UUID]*domain.Saleswoman
	updateErr  error
}

func newFakeSaleswomanStore() *fakeSaleswomanStore {
	return &fakeSaleswomanStore{saleswomen: make(map[uuid.UUID]*domain.Saleswoman)}
}

func (f *fakeSaleswomanStore) Create(ctx context.Context, s *domain.Saleswoman) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.saleswomen[s.ID] = &cp
	return nil
}

func (f *fakeSaleswomanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Saleswoman, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sw, ok := f.saleswomen[id]
	if !ok {
		return nil, store.ErrSaleswomanNotFound
	}
	cp := *sw
	return &cp, nil
}

func (f *fakeSaleswomanStore) List(ctx context.Context) ([]*domain.Saleswoman, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Saleswoman
	for _, sw := range f.saleswomen {
		cp := *sw
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeSaleswomanStore) Update(ctx context.Context, s *domain.Saleswoman) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.saleswomen[s.ID]; !ok {
		return store.ErrSaleswomanNotFound
	}
	cp := *s
	f.saleswomen[s.ID] = &cp
	return nil
}

func (f *fakeSaleswomanStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.saleswomen[id]; !ok {
		return store.ErrSaleswomanNotFound
	}
	delete(f.saleswomen, id)
	return nil
}

func (f *fakeSaleswomanStore) WithTx(tx *sql.Tx) store.SaleswomanStore { return f }

// fakeWorker records dispatches and can be programmed to fail.
type fakeWorker struct {
	mu sync.Mutex

	processErr error
	analyzeErr error
	summaryErr error
	summary    string

	processCalls       []uuid.UUID
	analyzeCalls       []uuid.UUID
	summaryCalls       int
	lastTranscriptions []string
	lastSettings       domain.Settings
}

func (f *fakeWorker) NotifyProcessTask(ctx context.Context, taskID uuid.UUID, filePath string, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls = append(f.processCalls, taskID)
	f.lastSettings = settings
	return f.processErr
}

func (f *fakeWorker) NotifyAnalyzeTask(ctx context.Context, taskID uuid.UUID, transcription string, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls = append(f.analyzeCalls, taskID)
	f.lastSettings = settings
	return f.analyzeErr
}

func (f *fakeWorker) GenerateConsolidatedSummary(ctx context.Context, name string, transcriptions []string, settings domain.Settings) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	f.lastTranscriptions = transcriptions
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	if f.summary != "" {
		return f.summary, nil
	}
	return "resumo consolidado", nil
}

// fakePublisher records broadcast snapshots in order.
type fakePublisher struct {
	mu        sync.Mutex
	snapshots []*domain.Task
}

func (f *fakePublisher) PublishTask(ctx context.Context, task *domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *task
	f.snapshots = append(f.snapshots, &cp)
}

func (f *fakePublisher) statuses() []domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TaskStatus, len(f.snapshots))
	for i, task := range f.snapshots {
		out[i] = task.Status
	}
	return out
}

// staticSettings is a SettingsProvider with fixed content.
type staticSettings struct {
	settings domain.Settings
	err      error
}

func (s *staticSettings) Current(ctx context.Context) (domain.Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.settings == nil {
		return domain.Settings{}, nil
	}
	return s.settings, nil
}

// fakeRenderer returns fixed PDF bytes.
type fakeRenderer struct{ renderErr error }

func (f *fakeRenderer) RenderSummary(name, summary string, at time.Time) ([]byte, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return []byte("%PDF-1.4 fake"), nil
}

// fakeMailer records sends.
type fakeMailer struct {
	mu      sync.Mutex
	sendErr error
	sentTo  []string
}

func (f *fakeMailer) SendSummary(ctx context.Context, settings domain.Settings, sw *domain.Saleswoman, pdf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	email := ""
	if sw.Email != nil {
		email = *sw.Email
	}
	f.sentTo = append(f.sentTo, email)
	return nil
}

var errWorkerDown = errors.New("connection refused")
