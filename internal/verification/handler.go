package verification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Handler exposes the OTP step over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// StatusResponse never includes the code.
type StatusResponse struct {
	State    State  `json:"state"`
	Verified bool   `json:"verified"`
	Next     string `json:"next,omitempty"`
	Message  string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// Send handles POST /api/verification/{token}/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.Send(r.Context(), token); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, StatusResponse{
		State:   StateSent,
		Message: "OTP sent to your phone",
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

// Verify handles POST /api/verification/{token}/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.Verify(r.Context(), token, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		State:    StateVerified,
		Verified: true,
		Next:     "/payment-details?" + url.Values{"session": {token}}.Encode(),
	})
}

// Status handles GET /api/verification/{token}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	state, err := h.service.Status(r.Context(), token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{State: state, Verified: state == StateVerified})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *VerificationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Session expired. Please fill the form again."})
	case errors.Is(err, ErrAlreadyVerified):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Phone number already verified"})
	case errors.Is(err, ErrInFlight):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Please wait, an OTP is already being sent"})
	case errors.Is(err, ErrNotSent):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Please request an OTP first"})
	case errors.As(err, &ve):
		status := http.StatusUnprocessableEntity
		if ve.Kind == KindSendFailed {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: ve.Message, Kind: ve.Kind})
	default:
		h.logger.Error("verification request failed", "error", err)
		http.Error(w, "verification failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
