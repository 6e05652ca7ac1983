package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Handler exposes read-only funnel details to the client.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// DetailsResponse is shown on the payment-details step.
type DetailsResponse struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Area         string `json:"area"`
	CustomArea   string `json:"custom_area,omitempty"`
	CustomerArea string `json:"customer_area"`
	HasLicense   bool   `json:"has_license"`
	Verified     bool   `json:"verified"`
}

// Details handles GET /api/funnel/{token}
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sess, err := h.store.Get(r.Context(), token)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load funnel session", "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(DetailsResponse{
		Name:         sess.Name,
		Phone:        sess.Phone,
		Email:        sess.Email,
		Area:         sess.Area,
		CustomArea:   sess.CustomArea,
		CustomerArea: sess.CustomerArea(),
		HasLicense:   sess.HasLicense,
		Verified:     sess.Verified,
	})
}
