package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{name: "listed origin", allowed: []string{"https://join.inlane.in/"}, origin: "https://join.inlane.in", method: http.MethodPost, wantOrigin: "https://join.inlane.in", wantStatus: http.StatusOK, wantHandler: true},
		{name: "unknown origin", allowed: []string{"https://join.inlane.in"}, origin: "https://evil.example", method: http.MethodPost, wantStatus: http.StatusOK, wantHandler: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://random.example", method: http.MethodGet, wantOrigin: "https://random.example", wantStatus: http.StatusOK, wantHandler: true},
		{name: "preflight", allowed: []string{"https://join.inlane.in"}, origin: "https://join.inlane.in", method: http.MethodOptions, preflight: true, wantOrigin: "https://join.inlane.in", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/api/leads", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(handler).ServeHTTP(rec, req)

			if called != tt.wantHandler {
				t.Fatalf("handler called=%v, want %v", called, tt.wantHandler)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Headers") != corsAllowedHeaders {
				t.Fatalf("expected allow headers")
			}
		})
	}
}
