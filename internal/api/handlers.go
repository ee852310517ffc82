package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/types"
	"github.com/hyperengineering/verdict/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// DecisionService is the decision lifecycle the handlers expose.
type DecisionService interface {
	Start(ctx context.Context, owner string, req types.StartDecisionRequest) (*types.Decision, error)
	Get(ctx context.Context, owner, id string) (*types.Decision, error)
	List(ctx context.Context, owner string) ([]types.Decision, error)
	Delete(ctx context.Context, owner, id string) error
	Suggest(ctx context.Context, owner, id string, index int) (*types.SuggestionResponse, error)
	Advance(ctx context.Context, owner, id string, index int, req types.SubmitStepRequest) (*types.AdvanceResponse, error)
	GetSummary(ctx context.Context, owner, id string) (*types.SummaryResponse, error)
	AddFeedback(ctx context.Context, owner, id string, req types.FeedbackRequest) (*types.Feedback, error)
	ListFeedback(ctx context.Context, owner, id string) ([]types.Feedback, error)
}

// QuickAdvisor answers one-shot questions.
type QuickAdvisor interface {
	QuickAdvice(ctx context.Context, question string) string
}

// StatsSource reports store statistics for the health check.
type StatsSource interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
}

// Options configures a Handler.
type Options struct {
	Version        string
	Model          string
	JWTSecret      string
	JWTIssuer      string
	ArchiveEnabled bool

	// Model-backed endpoints are limited per owner.
	ModelRequestsPerMinute int
	ModelBurst             int
}

// Handler implements the API handlers
type Handler struct {
	decisions DecisionService
	advisor   QuickAdvisor
	stats     StatsSource
	opts      Options
}

// NewHandler creates a new Handler.
func NewHandler(svc DecisionService, advisor QuickAdvisor, stats StatsSource, opts Options) *Handler {
	return &Handler{
		decisions: svc,
		advisor:   advisor,
		stats:     stats,
		opts:      opts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads the request body into v, writing a problem and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

// decisionIDParam returns the {id} path parameter, writing a 422 when it is
// not a decision ID.
func decisionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if errs := validation.ValidateDecisionID(id); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return "", false
	}
	return id, true
}

func stepIndexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Step index must be an integer")
		return 0, false
	}
	return index, true
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:        "healthy",
		Version:       h.opts.Version,
		Model:         h.opts.Model,
		DecisionCount: stats.DecisionCount,
		Archive:       h.opts.ArchiveEnabled,
	})
}

// GetFramework handles GET /api/v1/framework
func (h *Handler) GetFramework(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if len(id) > 64 {
		WriteProblem(w, r, http.StatusBadRequest, "Framework id too long")
		return
	}
	fw, err := framework.Lookup(id)
	if err != nil {
		WriteProblem(w, r, http.StatusNotFound, "Framework not found")
		return
	}
	writeJSON(w, http.StatusOK, fw)
}

// QuickAdvice handles POST /api/v1/advice
func (h *Handler) QuickAdvice(w http.ResponseWriter, r *http.Request) {
	var req types.QuickAdviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateQuickAdvice(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}
	writeJSON(w, http.StatusOK, types.QuickAdviceResponse{
		Decision: h.advisor.QuickAdvice(r.Context(), req.Question),
	})
}

// CreateDecision handles POST /api/v1/decisions
func (h *Handler) CreateDecision(w http.ResponseWriter, r *http.Request) {
	var req types.StartDecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateStartDecision(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	d, err := h.decisions.Start(r.Context(), MustOwnerFromContext(r.Context()), req)
	if err != nil {
		MapError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/decisions/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

// ListDecisions handles GET /api/v1/decisions
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	list, err := h.decisions.List(r.Context(), MustOwnerFromContext(r.Context()))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.DecisionList{Decisions: list})
}

// GetDecision handles GET /api/v1/decisions/{id}
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	d, err := h.decisions.Get(r.Context(), MustOwnerFromContext(r.Context()), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDecision handles DELETE /api/v1/decisions/{id}
func (h *Handler) DeleteDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	if err := h.decisions.Delete(r.Context(), MustOwnerFromContext(r.Context()), id); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSuggestion handles GET /api/v1/decisions/{id}/steps/{index}/suggestion
func (h *Handler) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	index, ok := stepIndexParam(w, r)
	if !ok {
		return
	}
	resp, err := h.decisions.Suggest(r.Context(), MustOwnerFromContext(r.Context()), id, index)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitStep handles POST /api/v1/decisions/{id}/steps/{index}
func (h *Handler) SubmitStep(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	index, ok := stepIndexParam(w, r)
	if !ok {
		return
	}
	var req types.SubmitStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateSubmitStep(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	resp, err := h.decisions.Advance(r.Context(), MustOwnerFromContext(r.Context()), id, index, req)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSummary handles GET /api/v1/decisions/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.decisions.GetSummary(r.Context(), MustOwnerFromContext(r.Context()), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateFeedback handles POST /api/v1/decisions/{id}/feedback
func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	var req types.FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateFeedback(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	fb, err := h.decisions.AddFeedback(r.Context(), MustOwnerFromContext(r.Context()), id, req)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

// ListFeedback handles GET /api/v1/decisions/{id}/feedback
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := decisionIDParam(w, r)
	if !ok {
		return
	}
	list, err := h.decisions.ListFeedback(r.Context(), MustOwnerFromContext(r.Context()), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FeedbackList{Feedback: list})
}
