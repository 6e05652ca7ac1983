package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// SessionStarter opens a funnel session for a stored lead and returns its token.
type SessionStarter interface {
	StartSession(ctx context.Context, lead *Lead) (string, error)
}

// HandlerConfig wires the lead endpoints.
type HandlerConfig struct {
	Catalog   AreaCatalog
	Variant   Variant
	Submitter Submitter
	Repo      Repository
	Sessions  SessionStarter
	Metrics   *metrics.FunnelMetrics
	Logger    *logging.Logger
}

// Handler handles HTTP requests for leads
type Handler struct {
	catalog   AreaCatalog
	variant   Variant
	submitter Submitter
	repo      Repository
	sessions  SessionStarter
	metrics   *metrics.FunnelMetrics
	logger    *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	submitter := cfg.Submitter
	if submitter == nil && cfg.Repo != nil {
		submitter = NewRepositorySubmitter(cfg.Repo, logger)
	}
	return &Handler{
		catalog:   cfg.Catalog,
		variant:   cfg.Variant,
		submitter: submitter,
		repo:      cfg.Repo,
		sessions:  cfg.Sessions,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// OptionsResponse describes the form to clients.
type OptionsResponse struct {
	Areas              []string `json:"areas"`
	Variant            string   `json:"variant"`
	PaymentEnabled     bool     `json:"payment_enabled"`
	OtherOffersPayment bool     `json:"other_offers_payment"`
}

// Options handles GET /api/leads/options
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OptionsResponse{
		Areas:              h.catalog.Options(),
		Variant:            h.variant.Name,
		PaymentEnabled:     h.variant.PaymentEnabled,
		OtherOffersPayment: h.variant.OtherOffersPayment,
	})
}

type validateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Area  string `json:"area"`
}

// ValidateResponse is the inline validation result for one field.
type ValidateResponse struct {
	Field               string `json:"field"`
	Valid               bool   `json:"valid"`
	Error               string `json:"error,omitempty"`
	ShowLicenseQuestion *bool  `json:"show_license_question,omitempty"`
}

// ValidateField handles POST /api/leads/validate
func (h *Handler) ValidateField(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, err := ParseField(req.Field)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	area := req.Area
	if field == FieldArea {
		area = req.Value
	}
	resp := ValidateResponse{Field: string(field), Valid: true}
	var fe *FieldError
	if errors.As(h.catalog.ValidateField(field, req.Value, area), &fe) {
		resp.Valid = false
		resp.Error = fe.Message()
	}
	if field == FieldArea {
		form := NewForm(h.catalog, h.variant)
		show := form.licenseApplies(req.Value)
		resp.ShowLicenseQuestion = &show
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitResponse is returned after a lead is stored.
type SubmitResponse struct {
	LeadID       string       `json:"lead_id"`
	Next         Step         `json:"next"`
	SessionToken string       `json:"session_token,omitempty"`
	Redirect     string       `json:"redirect,omitempty"`
	CallToAction CallToAction `json:"call_to_action"`
	Message      string       `json:"message,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	LeadID string            `json:"lead_id,omitempty"`
	Retry  string            `json:"retry,omitempty"`
}

// CreateLead handles POST /api/leads
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		http.Error(w, "lead storage not configured", http.StatusServiceUnavailable)
		return
	}
	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	form := NewForm(h.catalog, h.variant)
	form.Fill(rec)
	cta := form.CallToAction()

	outcome, err := form.Submit(r.Context(), h.submitter)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	resp := SubmitResponse{
		LeadID:       outcome.Lead.ID,
		Next:         outcome.Next,
		CallToAction: cta,
	}
	if outcome.Next == StepVerification && h.sessions != nil {
		token, err := h.sessions.StartSession(r.Context(), outcome.Lead)
		if err != nil {
			h.logger.Error("failed to start funnel session", "error", err, "lead_id", outcome.Lead.ID)
			h.metrics.ObserveLeadSubmission("success", "session_error")
			h.writeSessionError(w, outcome.Lead.ID)
			return
		}
		resp.SessionToken = token
		resp.Redirect = verificationRedirect(token)
	} else {
		resp.Next = StepSubmitted
		resp.Message = "Thank you! Our team will contact you shortly."
	}
	h.metrics.ObserveLeadSubmission("success", string(resp.Next))
	writeJSON(w, http.StatusCreated, resp)
}

// ResumeSession handles POST /api/leads/{id}/session. It opens a funnel
// session for a lead that is already stored, so a failed session start can be
// retried without inserting the lead again.
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.sessions == nil {
		http.Error(w, "lead storage not configured", http.StatusServiceUnavailable)
		return
	}
	leadID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(leadID); err != nil {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	lead, err := h.repo.GetByID(r.Context(), leadID)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err, "lead_id", leadID)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	if !h.verificationEligible(lead) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "This lead does not continue to verification.", LeadID: lead.ID})
		return
	}

	token, err := h.sessions.StartSession(r.Context(), lead)
	if err != nil {
		h.logger.Error("failed to resume funnel session", "error", err, "lead_id", lead.ID)
		h.writeSessionError(w, lead.ID)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{
		LeadID:       lead.ID,
		Next:         StepVerification,
		SessionToken: token,
		Redirect:     verificationRedirect(token),
		CallToAction: CTAPayNow,
	})
}

func (h *Handler) verificationEligible(lead *Lead) bool {
	if !h.variant.PaymentEnabled || LicenseFromPtr(lead.HasLicense) != LicenseYes {
		return false
	}
	return NewForm(h.catalog, h.variant).licenseApplies(lead.Area)
}

// writeSessionError reports a stored lead whose session could not be opened.
// The lead id and retry path let the client resume without resubmitting.
func (h *Handler) writeSessionError(w http.ResponseWriter, leadID string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error:  "Could not continue to verification. Please try again.",
		Kind:   "session",
		LeadID: leadID,
		Retry:  "/api/leads/" + url.PathEscape(leadID) + "/session",
	})
}

func verificationRedirect(token string) string {
	return "/verification?" + url.Values{"session": {token}}.Encode()
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var (
		valErr *ValidationErrors
		subErr *SubmissionError
	)
	switch {
	case errors.As(err, &valErr):
		h.metrics.ObserveLeadSubmission("invalid", "")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "Please fix the highlighted fields",
			Errors: valErr.Errors.Messages(),
		})
	case errors.As(err, &subErr):
		h.metrics.ObserveLeadSubmission(string(subErr.Kind), "")
		status := http.StatusBadGateway
		if subErr.Kind == SubmissionRejected {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: subErr.Message, Kind: string(subErr.Kind)})
	default:
		h.logger.Error("lead submit failed", "error", err)
		http.Error(w, "failed to submit lead", http.StatusInternalServerError)
	}
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "lead storage not configured", http.StatusServiceUnavailable)
		return
	}

	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	filter.Area = r.URL.Query().Get("area")

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
