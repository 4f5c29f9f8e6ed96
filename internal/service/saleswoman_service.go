package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
	"github.com/projetosombra/sombra-api/internal/store"
)

// SaleswomanService covers the sales agent roster. Deletion is restricted
// while tasks still reference the agent; her summary PDF file goes with her.
type SaleswomanService struct {
	saleswomanStore store.SaleswomanStore
	logger          *slog.Logger
}

// NewSaleswomanService creates a SaleswomanService. If logger is nil, the
// default logger is used.
func NewSaleswomanService(saleswomanStore store.SaleswomanStore, logger *slog.Logger) *SaleswomanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaleswomanService{
		saleswomanStore: saleswomanStore,
		logger:          logger.With(slog.String("component", "saleswoman_service")),
	}
}

// List returns every saleswoman ordered by name.
func (s *SaleswomanService) List(ctx context.Context) ([]*domain.Saleswoman, error) {
	return s.saleswomanStore.List(ctx)
}

// Get returns one saleswoman by ID.
func (s *SaleswomanService) Get(ctx context.Context, id uuid.UUID) (*domain.Saleswoman, error) {
	return s.saleswomanStore.GetByID(ctx, id)
}

// Create registers a new saleswoman. An empty email is stored as absent.
func (s *SaleswomanService) Create(ctx context.Context, name, email string) (*domain.Saleswoman, error) {
	sw, err := domain.NewSaleswoman(name, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.saleswomanStore.Create(ctx, sw); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("saleswoman created",
		slog.String("saleswoman_id", sw.ID.String()))
	return sw, nil
}

// Update changes a saleswoman's name and email. Throttle bookkeeping fields
// are untouched.
func (s *SaleswomanService) Update(ctx context.Context, id uuid.UUID, name, email string) (*domain.Saleswoman, error) {
	sw, err := s.saleswomanStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sw.Name = name
	sw.Email = nil
	if email != "" {
		sw.Email = &email
	}
	sw.UpdatedAt = time.Now().UTC()

	if err := sw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.saleswomanStore.Update(ctx, sw); err != nil {
		return nil, err
	}
	return sw, nil
}

// Delete removes a saleswoman and her summary PDF file. Returns
// store.ErrRestricted while any task still references her.
func (s *SaleswomanService) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sw, err := s.saleswomanStore.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.saleswomanStore.Delete(ctx, id); err != nil {
		return err
	}

	if sw.SummaryPDFPath != nil && *sw.SummaryPDFPath != "" {
		if err := os.Remove(*sw.SummaryPDFPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove summary PDF of deleted saleswoman",
				slog.String("path", *sw.SummaryPDFPath),
				slog.String("error", err.Error()))
		}
	}

	log.Info("saleswoman deleted", slog.String("saleswoman_id", id.String()))
	return nil
}
