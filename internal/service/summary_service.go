package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/store"
)

// SummaryRenderer renders summary PDFs. Implemented by pdf.Renderer.
type SummaryRenderer interface {
	RenderSummary(saleswomanName, summary string, generatedAt time.Time) ([]byte, error)
}

// SummaryMailer delivers summary PDFs. Implemented by mail.Mailer.
type SummaryMailer interface {
	SendSummary(ctx context.Context, settings domain.Settings, saleswoman *domain.Saleswoman, pdfContent []byte) error
}

// SummaryPolicy holds the throttle parameters for on-demand generation and
// the default volume threshold for the batch trigger.
type SummaryPolicy struct {
	DailyLimit          int
	Cooldown            time.Duration
	MaxTasks            int
	DefaultTriggerCount int
}

// SummaryService enforces the two summary policies: the per-saleswoman
// on-demand throttle and the recurring volume-based batch trigger.
type SummaryService struct {
	transact        func(ctx context.Context, fn store.TxFn) error
	taskStore       store.TaskStore
	saleswomanStore store.SaleswomanStore
	worker          WorkerGateway
	settings        SettingsProvider
	renderer        SummaryRenderer
	mailer          SummaryMailer
	summariesDir    string
	policy          SummaryPolicy
	logger          *slog.Logger
	now             func() time.Time
}

// NewSummaryService creates a SummaryService. If logger is nil, the default
// logger is used.
func NewSummaryService(
	db *sql.DB,
	taskStore store.TaskStore,
	saleswomanStore store.SaleswomanStore,
	worker WorkerGateway,
	settings SettingsProvider,
	renderer SummaryRenderer,
	mailer SummaryMailer,
	summariesDir string,
	policy SummaryPolicy,
	logger *slog.Logger,
) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryService{
		transact: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		taskStore:       taskStore,
		saleswomanStore: saleswomanStore,
		worker:          worker,
		settings:        settings,
		renderer:        renderer,
		mailer:          mailer,
		summariesDir:    summariesDir,
		policy:          policy,
		logger:          logger.With(slog.String("component", "summary_service")),
		now:             time.Now,
	}
}

// GenerateOnDemand produces a consolidated summary PDF for one saleswoman,
// subject to the daily cap and cooldown window. force overrides both soft
// limits. The throttle counter is lazily reset at the first attempt of a new
// calendar day, so a saleswoman capped yesterday can generate again today.
func (s *SummaryService) GenerateOnDemand(ctx context.Context, saleswomanID uuid.UUID, force bool) (*domain.Saleswoman, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	sw, err := s.saleswomanStore.GetByID(ctx, saleswomanID)
	if err != nil {
		return nil, err
	}

	if sw.ResetDailyCounterIfStale(now) {
		log.Info("daily summary counter reset",
			slog.String("saleswoman_id", sw.ID.String()))
	}

	if !force {
		if sw.SummaryGenerationsToday >= s.policy.DailyLimit {
			return nil, &RateLimitError{Limit: s.policy.DailyLimit}
		}
		if sw.SummaryLastGeneratedAt != nil && now.Sub(*sw.SummaryLastGeneratedAt) < s.policy.Cooldown {
			return nil, &CooldownError{
				LastGeneratedAt: *sw.SummaryLastGeneratedAt,
				Cooldown:        s.policy.Cooldown,
			}
		}
	}

	tasks, err := s.taskStore.ListCompletedBySaleswoman(ctx, saleswomanID, true, s.policy.MaxTasks)
	if err != nil {
		return nil, fmt.Errorf("listing analysed tasks: %w", err)
	}

	transcriptions := collectTranscriptions(tasks)
	if len(transcriptions) == 0 {
		return nil, ErrNoAnalyses
	}

	pdfPath, err := s.produceSummaryPDF(ctx, sw, transcriptions, now)
	if err != nil {
		return nil, err
	}

	previousPDF := sw.SummaryPDFPath
	sw.RecordSummaryGeneration(now, pdfPath)

	err = s.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.saleswomanStore.WithTx(tx).Update(ctx, sw)
	})
	if err != nil {
		return nil, fmt.Errorf("recording summary generation: %w", err)
	}

	s.removePreviousPDF(ctx, previousPDF, pdfPath)

	log.Info("on-demand summary generated",
		slog.String("saleswoman_id", sw.ID.String()),
		slog.Int("generations_today", sw.SummaryGenerationsToday),
		slog.Bool("forced", force))
	return sw, nil
}

// RunVolumeTrigger scans every saleswoman with a deliverable email and, for
// each whose unsummarized completed-task count reached the configured
// threshold, generates a summary from exactly that batch, marks the tasks as
// consumed, and emails the PDF. A failure for one saleswoman never aborts
// the others.
func (s *SummaryService) RunVolumeTrigger(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}
	threshold := settings.SummaryTriggerCount(s.policy.DefaultTriggerCount)

	saleswomen, err := s.saleswomanStore.List(ctx)
	if err != nil {
		return fmt.Errorf("listing saleswomen: %w", err)
	}

	for _, sw := range saleswomen {
		if !sw.HasDeliverableEmail() {
			continue
		}
		if err := s.runVolumeTriggerFor(ctx, sw, settings, threshold); err != nil {
			log.Error("batch summary failed for saleswoman",
				slog.String("saleswoman_id", sw.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

func (s *SummaryService) runVolumeTriggerFor(ctx context.Context, sw *domain.Saleswoman, settings domain.Settings, threshold int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	batch, err := s.taskStore.ListUnsummarized(ctx, sw.ID)
	if err != nil {
		return fmt.Errorf("listing unsummarized tasks: %w", err)
	}
	if len(batch) < threshold {
		return nil
	}
	// ListUnsummarized returns newest first; consume exactly one threshold's
	// worth and leave the remainder to seed the next trigger.
	batch = batch[:threshold]

	transcriptions := collectTranscriptions(batch)
	if len(transcriptions) == 0 {
		return ErrNoAnalyses
	}

	pdfPath, err := s.produceSummaryPDF(ctx, sw, transcriptions, now)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(batch))
	for i, task := range batch {
		ids[i] = task.ID
	}

	previousPDF := sw.SummaryPDFPath
	if sw.ResetDailyCounterIfStale(now) {
		log.Info("daily summary counter reset",
			slog.String("saleswoman_id", sw.ID.String()))
	}
	sw.RecordSummaryGeneration(now, pdfPath)

	err = s.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.taskStore.WithTx(tx).MarkIncludedInSummary(ctx, ids); err != nil {
			return err
		}
		return s.saleswomanStore.WithTx(tx).Update(ctx, sw)
	})
	if err != nil {
		return fmt.Errorf("recording batch summary: %w", err)
	}

	s.removePreviousPDF(ctx, previousPDF, pdfPath)

	pdfContent, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("reading generated PDF: %w", err)
	}
	if err := s.mailer.SendSummary(ctx, settings, sw, pdfContent); err != nil {
		return fmt.Errorf("emailing summary: %w", err)
	}

	log.Info("batch summary generated and emailed",
		slog.String("saleswoman_id", sw.ID.String()),
		slog.Int("task_count", len(batch)))
	return nil
}

// produceSummaryPDF asks the worker for consolidated prose, renders the PDF,
// and writes it to the summaries directory keyed by saleswoman and timestamp.
func (s *SummaryService) produceSummaryPDF(ctx context.Context, sw *domain.Saleswoman, transcriptions []string, now time.Time) (string, error) {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return "", err
	}

	summary, err := s.worker.GenerateConsolidatedSummary(ctx, sw.Name, transcriptions, settings)
	if err != nil {
		return "", fmt.Errorf("generating consolidated summary: %w", err)
	}

	content, err := s.renderer.RenderSummary(sw.Name, summary, now)
	if err != nil {
		return "", fmt.Errorf("rendering summary PDF: %w", err)
	}

	if err := os.MkdirAll(s.summariesDir, 0o755); err != nil {
		return "", fmt.Errorf("creating summaries directory: %w", err)
	}

	filename := fmt.Sprintf("summary-%s-%d.pdf", sw.ID, now.UnixMilli())
	path := filepath.Join(s.summariesDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("writing summary PDF: %w", err)
	}

	return path, nil
}

// removePreviousPDF unlinks the prior summary file once the new one is
// committed. Removal is best-effort; a leftover file is harmless.
func (s *SummaryService) removePreviousPDF(ctx context.Context, previous *string, current string) {
	if previous == nil || *previous == "" || *previous == current {
		return
	}
	if err := os.Remove(*previous); err != nil && !os.IsNotExist(err) {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to remove previous summary PDF",
			slog.String("path", *previous),
			slog.String("error", err.Error()))
	}
}

func (s *SummaryService) currentSettings(ctx context.Context) (domain.Settings, error) {
	if s.settings == nil {
		return domain.Settings{}, nil
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return settings, nil
}

func collectTranscriptions(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if task.Transcription != nil && *task.Transcription != "" {
			out = append(out, *task.Transcription)
		}
	}
	return out
}
