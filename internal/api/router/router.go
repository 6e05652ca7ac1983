package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/inlane-funnel/internal/http/middleware"
	"github.com/wolfman30/inlane-funnel/internal/leads"
	"github.com/wolfman30/inlane-funnel/internal/payments"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/internal/verification"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	LeadsHandler        *leads.Handler
	SessionHandler      *session.Handler
	VerificationHandler *verification.Handler
	PaymentsHandler     *payments.Handler
	Health              *HealthHandler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string

	// Optional limiters; nil disables the limit.
	LeadLimiter httpmiddleware.Limiter // per client IP on lead submission
	OTPLimiter  httpmiddleware.Limiter // per session token on OTP send
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}
	r.Get("/health", health.ServeHTTP)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.LeadsHandler != nil {
		r.Route("/api/leads", func(api chi.Router) {
			api.Get("/options", cfg.LeadsHandler.Options)
			api.Post("/validate", cfg.LeadsHandler.ValidateField)
			api.With(limit(cfg.LeadLimiter, httpmiddleware.ClientIP)).Post("/", cfg.LeadsHandler.CreateLead)
			api.With(limit(cfg.LeadLimiter, httpmiddleware.ClientIP)).Post("/{id}/session", cfg.LeadsHandler.ResumeSession)
		})
	}

	if cfg.SessionHandler != nil {
		r.Get("/api/funnel/{token}", cfg.SessionHandler.Details)
	}

	if cfg.VerificationHandler != nil {
		r.Route("/api/verification/{token}", func(api chi.Router) {
			api.Get("/", cfg.VerificationHandler.Status)
			api.With(limit(cfg.OTPLimiter, httpmiddleware.URLParam("token"))).Post("/send", cfg.VerificationHandler.Send)
			api.Post("/verify", cfg.VerificationHandler.Verify)
		})
	}

	if cfg.PaymentsHandler != nil {
		r.Post("/api/payment/{token}/gateway", cfg.PaymentsHandler.GatewayJSON)
		r.Route("/payment", func(pages chi.Router) {
			pages.Post("/{token}/initiate", cfg.PaymentsHandler.Initiate)
			pages.Get("/status", cfg.PaymentsHandler.Callback)
			pages.Post("/status", cfg.PaymentsHandler.Callback)
			pages.Get("/success", cfg.PaymentsHandler.Success)
			pages.Get("/failure", cfg.PaymentsHandler.Failure)
		})
	}

	if cfg.LeadsHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/leads", cfg.LeadsHandler.ListLeads)
		})
	}

	return r
}

func limit(limiter httpmiddleware.Limiter, key httpmiddleware.KeyFunc) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return httpmiddleware.RateLimit(limiter, key)
}
