package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmiddleware "github.com/wolfman30/inlane-funnel/internal/http/middleware"
	"github.com/wolfman30/inlane-funnel/internal/leads"
	"github.com/wolfman30/inlane-funnel/internal/messaging"
	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/internal/payments"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/internal/verification"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

type fakeGateway struct {
	request payments.InitiateRequest
}

func (g *fakeGateway) Initiate(ctx context.Context, req payments.InitiateRequest) (*payments.InitiateResponse, error) {
	g.request = req
	return &payments.InitiateResponse{
		GatewayURL:    "https://pay.example/checkout",
		FormData:      map[string]string{"encData": "opaque"},
		TransactionID: "TX100",
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, encData string) (*payments.VerifyResponse, error) {
	if encData != "opaque-callback" {
		return nil, errors.New("bad payload")
	}
	return &payments.VerifyResponse{ResponseCode: "00", ResponseMessage: "Approved", TransactionID: "TX100"}, nil
}

type testEnv struct {
	router   http.Handler
	repo     *leads.InMemoryRepository
	payments *payments.MemoryRepository
	gateway  *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewFunnelMetrics(reg)

	catalog := leads.NewAreaCatalog([]string{"HSR Layout", "Koramangala", "Electronic City"})
	variant, err := leads.VariantByName("pay-now", false)
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	leadRepo := leads.NewInMemoryRepository()
	sessions := session.NewMemoryStore(time.Minute)
	locker := session.NewMemoryLocker()
	sender := messaging.OTPSenderFunc(func(ctx context.Context, phone string) (string, error) {
		return "482913", nil
	})
	otp := verification.NewService(sessions, verification.NewMemoryChallengeStore(), sender, locker, verification.Config{}, logger).WithMetrics(m)
	gw := &fakeGateway{}
	payRepo := payments.NewMemoryRepository()

	cfg := &Config{
		Logger: logger,
		LeadsHandler: leads.NewHandler(leads.HandlerConfig{
			Catalog:  catalog,
			Variant:  variant,
			Repo:     leadRepo,
			Sessions: sessions,
			Metrics:  m,
			Logger:   logger,
		}),
		SessionHandler:      session.NewHandler(sessions, logger),
		VerificationHandler: verification.NewHandler(otp, logger),
		PaymentsHandler: payments.NewHandler(
			payments.NewHandoff(sessions, gw, payRepo, locker, 999, logger),
			payments.NewStatusService(gw, payRepo, logger),
			"",
			logger,
		),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret:    "admin-secret",
		CORSAllowedOrigins: []string{"https://join.inlane.in"},
	}
	return &testEnv{router: New(cfg), repo: leadRepo, payments: payRepo, gateway: gw}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("expected failing check in body: %s", rr.Body.String())
	}
}

func TestRouterFunnelEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/leads/validate", `{"field":"phone","value":"1234567890"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"valid":false`) {
		t.Fatalf("expected invalid phone, got %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/leads", `{"name":"Aditi Rao","phone":"98765 43210","email":"Aditi@Example.com","area":"Koramangala","has_license":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var submit leads.SubmitResponse
	if err := json.NewDecoder(rr.Body).Decode(&submit); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submit.Next != leads.StepVerification || submit.SessionToken == "" || submit.CallToAction != leads.CTAPayNow {
		t.Fatalf("unexpected submit response %+v", submit)
	}
	token := submit.SessionToken

	rr = env.do(t, http.MethodGet, "/api/funnel/"+token, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "aditi@example.com") {
		t.Fatalf("unexpected details %d %s", rr.Code, rr.Body.String())
	}

	if rr = env.do(t, http.MethodPost, "/api/payment/"+token+"/gateway", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("payment before verification must be forbidden, got %d", rr.Code)
	}

	if rr = env.do(t, http.MethodPost, "/api/verification/"+token+"/send", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	if rr = env.do(t, http.MethodPost, "/api/verification/"+token+"/verify", `{"code":"000000"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("wrong code: expected 422, got %d", rr.Code)
	}
	if rr = env.do(t, http.MethodPost, "/api/verification/"+token+"/verify", `{"code":"482913"}`); rr.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rr.Code, rr.Body.String())
	}
	if rr = env.do(t, http.MethodGet, "/api/verification/"+token, ""); !strings.Contains(rr.Body.String(), `"verified":true`) {
		t.Fatalf("expected verified state: %s", rr.Body.String())
	}

	if rr = env.do(t, http.MethodGet, "/api/payment/"+token+"/gateway", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("gateway form must not be reachable by GET, got %d", rr.Code)
	}
	if env.gateway.request != (payments.InitiateRequest{}) {
		t.Fatalf("GET must not start a payment, got %+v", env.gateway.request)
	}

	rr = env.do(t, http.MethodPost, "/payment/"+token+"/initiate", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `action="https://pay.example/checkout"`) {
		t.Fatalf("initiate: %d %s", rr.Code, rr.Body.String())
	}
	want := payments.InitiateRequest{LeadID: submit.LeadID, Name: "Aditi Rao", Phone: "9876543210", Email: "aditi@example.com", CustomerArea: "Koramangala", HasDrivingLicense: true, Amount: 999}
	if env.gateway.request != want {
		t.Fatalf("unexpected initiation payload %+v", env.gateway.request)
	}

	callback := "/payment/status?paymentResponse=" + url.QueryEscape(`{"EncData":"opaque-callback"}`)
	rr = env.do(t, http.MethodGet, callback, "")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/payment/success?transactionId=TX100" {
		t.Fatalf("callback: %d %q", rr.Code, rr.Header().Get("Location"))
	}
	rec, err := env.payments.Get(context.Background(), "TX100")
	if err != nil || rec.Status != payments.StatusDone || rec.LeadID != submit.LeadID {
		t.Fatalf("unexpected payment row %+v err=%v", rec, err)
	}

	rr = env.do(t, http.MethodGet, "/payment/success?transactionId=TX100", "")
	if !strings.Contains(rr.Body.String(), "Payment Successful") {
		t.Fatalf("unexpected success page: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "inlane_funnel_") {
		t.Fatalf("expected funnel metrics to be exposed")
	}
}

func TestRouterLeadValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/leads", `{"name":"A","phone":"123","email":"abc","area":""}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	for _, field := range []string{"name", "phone", "email", "area"} {
		if body.Errors[field] == "" {
			t.Fatalf("expected error for %s: %+v", field, body.Errors)
		}
	}
}

func TestRouterAdminLeadsRequiresJWT(t *testing.T) {
	env := newTestEnv(t)
	has := false
	if _, err := env.repo.Create(context.Background(), leads.NewLead{Name: "Ravi", Phone: "9123456789", Email: "ravi@example.com", Area: "HSR Layout", HasLicense: &has}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if rr := env.do(t, http.MethodGet, "/admin/leads", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "ops@inlane.in",
		Audience:  jwt.ClaimStrings{httpmiddleware.AdminAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("admin-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/leads?area=HSR+Layout", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Ravi") {
		t.Fatalf("expected lead listing, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterOTPRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := session.NewMemoryStore(time.Minute)
	token, _ := sessions.StartSession(ctx, &leads.Lead{ID: "lead-1", Phone: "9876543210"})
	sender := messaging.OTPSenderFunc(func(context.Context, string) (string, error) { return "111111", nil })
	otp := verification.NewService(sessions, verification.NewMemoryChallengeStore(), sender, nil, verification.Config{}, nil)

	r := New(&Config{
		VerificationHandler: verification.NewHandler(otp, logging.Discard()),
		OTPLimiter:          httpmiddleware.NewTokenBucket(ctx, 0.001, 1),
	})
	send := func() int {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/verification/"+token+"/send", bytes.NewReader(nil)))
		return rr.Code
	}
	if code := send(); code != http.StatusAccepted {
		t.Fatalf("first send: %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second send should be limited, got %d", code)
	}
}
