package payments

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

var gatewayPage = template.Must(template.New("gateway").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<p>Redirecting to the payment gateway&hellip;</p>
<form method="POST" action="{{.URL}}">
{{range $name, $value := .Fields}}<input type="hidden" name="{{$name}}" value="{{$value}}">
{{end}}<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h2>{{.Title}}</h2>
<p>Transaction ID: <code>{{.TransactionID}}</code></p>
{{if .Success}}<p>Thank you for choosing Lane!</p>
{{else}}<p>Your payment could not be processed.</p>
<p>Please try again or contact support if the issue persists.{{if .SupportPhone}} Support: <a href="tel:{{.SupportPhone}}">{{.SupportPhone}}</a>{{end}}</p>
{{end}}</body>
</html>
`))

type resultView struct {
	Title         string
	TransactionID string
	Success       bool
	SupportPhone  string
}

// Handler serves the payment handoff, provider callback and result pages.
type Handler struct {
	handoff      *Handoff
	status       *StatusService
	supportPhone string
	logger       *logging.Logger
}

func NewHandler(handoff *Handoff, status *StatusService, supportPhone string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{handoff: handoff, status: status, supportPhone: supportPhone, logger: logger}
}

// GatewayJSON returns the gateway form for script clients.
func (h *Handler) GatewayJSON(w http.ResponseWriter, r *http.Request) {
	form, ok := h.initiate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, form)
}

// Initiate renders a page that auto-posts the gateway form.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	form, ok := h.initiate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := gatewayPage.Execute(w, form); err != nil {
		h.logger.Error("failed to render gateway page", "error", err)
	}
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) (*GatewayForm, bool) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return nil, false
	}
	form, err := h.handoff.Initiate(r.Context(), token)
	if err == nil {
		return form, true
	}

	var initErr *InitiationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrNotVerified):
		http.Error(w, "phone not verified", http.StatusForbidden)
	case errors.Is(err, ErrInFlight):
		http.Error(w, "payment already in progress", http.StatusTooManyRequests)
	case errors.As(err, &initErr):
		http.Error(w, "Failed to initiate payment. Please try again.", http.StatusBadGateway)
	default:
		h.logger.Error("payment initiate failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return nil, false
}

// Callback verifies the provider response and redirects to the result page.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("paymentResponse")
	outcome, err := h.status.HandleCallback(r.Context(), raw)
	if err != nil {
		h.logger.Warn("payment callback rejected", "error", err)
		http.Redirect(w, r, "/payment/failure?transactionId=", http.StatusSeeOther)
		return
	}

	target := "/payment/failure"
	if outcome.Success {
		target = "/payment/success"
	}
	http.Redirect(w, r, target+"?transactionId="+url.QueryEscape(outcome.TransactionID), http.StatusSeeOther)
}

func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	h.renderResult(w, resultView{
		Title:         "Payment Successful",
		TransactionID: r.URL.Query().Get("transactionId"),
		Success:       true,
	})
}

func (h *Handler) Failure(w http.ResponseWriter, r *http.Request) {
	h.renderResult(w, resultView{
		Title:         "Payment Failed",
		TransactionID: r.URL.Query().Get("transactionId"),
		SupportPhone:  h.supportPhone,
	})
}

func (h *Handler) renderResult(w http.ResponseWriter, view resultView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultPage.Execute(w, view); err != nil {
		h.logger.Error("failed to render payment result", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
