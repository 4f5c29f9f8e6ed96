package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/projetosombra/sombra-api/internal/api/shared"
	"github.com/projetosombra/sombra-api/internal/domain"
)

// SaleswomanManager is the slice of the saleswoman service the handler
// needs.
type SaleswomanManager interface {
	List(ctx context.Context) ([]*domain.Saleswoman, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Saleswoman, error)
	Create(ctx context.Context, name, email string) (*domain.Saleswoman, error)
	Update(ctx context.Context, id uuid.UUID, name, email string) (*domain.Saleswoman, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SummaryGenerator produces the on-demand performance summary.
type SummaryGenerator interface {
	GenerateOnDemand(ctx context.Context, saleswomanID uuid.UUID, force bool) (*domain.Saleswoman, error)
}

// TaskLister lists a saleswoman's completed tasks.
type TaskLister interface {
	ListCompletedBySaleswoman(ctx context.Context, saleswomanID uuid.UUID) ([]*domain.Task, error)
}

// SaleswomanHandler serves saleswoman CRUD plus the summary endpoints.
type SaleswomanHandler struct {
	saleswomen SaleswomanManager
	summaries  SummaryGenerator
	tasks      TaskLister
	logger     *slog.Logger
}

// NewSaleswomanHandler creates a SaleswomanHandler. If logger is nil, the
// default logger is used.
func NewSaleswomanHandler(
	saleswomen SaleswomanManager,
	summaries SummaryGenerator,
	tasks TaskLister,
	logger *slog.Logger,
) *SaleswomanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaleswomanHandler{
		saleswomen: saleswomen,
		summaries:  summaries,
		tasks:      tasks,
		logger:     logger.With(slog.String("component", "saleswoman_handler")),
	}
}

type saleswomanRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// List handles GET /api/saleswomen.
func (h *SaleswomanHandler) List(w http.ResponseWriter, r *http.Request) {
	saleswomen, err := h.saleswomen.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, saleswomen)
}

// Get handles GET /api/saleswomen/{id}.
func (h *SaleswomanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	sw, err := h.saleswomen.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sw)
}

// Create handles POST /api/saleswomen.
func (h *SaleswomanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req saleswomanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	sw, err := h.saleswomen.Create(r.Context(), req.Name, strings.TrimSpace(req.Email))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, sw)
}

// Update handles PUT /api/saleswomen/{id}.
func (h *SaleswomanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req saleswomanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	sw, err := h.saleswomen.Update(r.Context(), id, req.Name, strings.TrimSpace(req.Email))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sw)
}

// Delete handles DELETE /api/saleswomen/{id}. Agents with tasks on record
// cannot be deleted; the store surfaces that as a restriction conflict.
func (h *SaleswomanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.saleswomen.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tasks handles GET /api/saleswomen/{id}/tasks, listing the agent's
// completed calls.
func (h *SaleswomanHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.saleswomen.Get(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	tasks, err := h.tasks.ListCompletedBySaleswoman(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

type generateSummaryRequest struct {
	Force bool `json:"force"`
}

// GenerateSummary handles POST /api/saleswomen/{id}/generate-summary-pdf.
// Responds 201 with the updated agent, 429 when the daily cap is hit, or
// 409 with confirmationRequired when the cooldown asks for confirmation.
func (h *SaleswomanHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	// The body is optional; an absent or empty body means force=false.
	var req generateSummaryRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	sw, err := h.summaries.GenerateOnDemand(r.Context(), id, req.Force)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, sw)
}

// SummaryPDF handles GET /api/saleswomen/{id}/summary-pdf, serving the most
// recently generated summary.
func (h *SaleswomanHandler) SummaryPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	sw, err := h.saleswomen.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if sw.SummaryPDFPath == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "No summary has been generated yet")
		return
	}
	if _, err := os.Stat(*sw.SummaryPDFPath); err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Summary file not found")
		return
	}
	http.ServeFile(w, r, *sw.SummaryPDFPath)
}
