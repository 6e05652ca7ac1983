package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

func TestInvokePostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send-message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer anon-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["phone"] != "+919876543210" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "anon-key", time.Second, logging.Discard())
	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Invoke(context.Background(), "send-message", map[string]string{"phone": "+919876543210"}, &out); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded response")
	}
}

func TestInvokeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"phone is invalid"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", time.Second, logging.Discard()).Invoke(context.Background(), "send-message", map[string]string{}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusBadRequest || statusErr.Message != "phone is invalid" {
		t.Fatalf("unexpected error %+v", statusErr)
	}
}

func TestInvokeNotConfigured(t *testing.T) {
	err := NewClient("", "", 0, nil).Invoke(context.Background(), "verify-payment", nil, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
