package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Saleswoman
var (
	ErrEmptySaleswomanID   = errors.New("saleswoman ID cannot be empty")
	ErrEmptySaleswomanName = errors.New("saleswoman name cannot be empty")
)

// Saleswoman represents a sales agent whose calls are analyzed. The summary
// bookkeeping fields back the daily on-demand throttle and point at the most
// recently generated PDF.
type Saleswoman struct {
	ID                        uuid.UUID  `json:"id"`
	Name                      string     `json:"name"`
	Email                     *string    `json:"email,omitempty"`
	SummaryPDFPath            *string    `json:"summaryPdfPath,omitempty"`
	SummaryLastGeneratedAt    *time.Time `json:"summaryLastGeneratedAt,omitempty"`
	SummaryLastGenerationDate *time.Time `json:"summaryLastGenerationDate,omitempty"`
	SummaryGenerationsToday   int        `json:"summaryGenerationsToday"`
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
}

// NewSaleswoman creates a Saleswoman with a fresh ID. An empty email is
// stored as nil.
func NewSaleswoman(name, email string) (*Saleswoman, error) {
	now := time.Now().UTC()
	s := &Saleswoman{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		s.Email = &email
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks if the Saleswoman has valid data.
func (s *Saleswoman) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySaleswomanID
	}

	if s.Name == "" {
		return ErrEmptySaleswomanName
	}

	return nil
}

// HasDeliverableEmail reports whether the agent can receive summary mail.
// Mirrors the batch trigger's selection rule rather than full RFC parsing.
func (s *Saleswoman) HasDeliverableEmail() bool {
	return s.Email != nil && strings.Contains(*s.Email, "@")
}

// ResetDailyCounterIfStale zeroes the daily generation counter the first
// time an operation observes that the last generation date predates the
// current calendar day. The comparison uses now's location so the boundary
// follows the server's local midnight. Returns true if the counter was
// reset.
func (s *Saleswoman) ResetDailyCounterIfStale(now time.Time) bool {
	if s.SummaryLastGenerationDate == nil {
		return false
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.SummaryLastGenerationDate.Before(startOfDay) {
		s.SummaryGenerationsToday = 0
		return true
	}

	return false
}

// RecordSummaryGeneration advances the throttle bookkeeping after a summary
// was produced at now.
func (s *Saleswoman) RecordSummaryGeneration(now time.Time, pdfPath string) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	generatedAt := now

	s.SummaryPDFPath = &pdfPath
	s.SummaryLastGeneratedAt = &generatedAt
	s.SummaryLastGenerationDate = &startOfDay
	s.SummaryGenerationsToday++
	s.UpdatedAt = now.UTC()
}
