package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedAdminToken(t *testing.T, secret string, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "ops@inlane.in",
		Audience:  jwt.ClaimStrings{AdminAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	if mutate != nil {
		mutate(&claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminJWTRejects(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
	}{
		{name: "auth disabled", secret: "", header: "Bearer " + signedAdminToken(t, "secret", nil)},
		{name: "missing header", secret: "secret"},
		{name: "wrong scheme", secret: "secret", header: "Basic abc"},
		{name: "wrong key", secret: "secret", header: "Bearer " + signedAdminToken(t, "wrong", nil)},
		{name: "expired", secret: "secret", header: "Bearer " + signedAdminToken(t, "secret", func(c *jwt.RegisteredClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})},
		{name: "no expiry", secret: "secret", header: "Bearer " + signedAdminToken(t, "secret", func(c *jwt.RegisteredClaims) {
			c.ExpiresAt = nil
		})},
		{name: "wrong audience", secret: "secret", header: "Bearer " + signedAdminToken(t, "secret", func(c *jwt.RegisteredClaims) {
			c.Audience = jwt.ClaimStrings{"someone-else"}
		})},
		{name: "no subject", secret: "secret", header: "Bearer " + signedAdminToken(t, "secret", func(c *jwt.RegisteredClaims) {
			c.Subject = ""
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AdminJWT(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("handler must not run")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret", nil))
	rec := httptest.NewRecorder()

	var subject string
	AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			t.Errorf("expected admin claims in context")
		}
		subject = claims.Subject
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if subject != "ops@inlane.in" {
		t.Fatalf("unexpected subject %q", subject)
	}
}
