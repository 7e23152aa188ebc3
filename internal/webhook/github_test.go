package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drewdunne/prsentry/internal/metrics"
)

const testSecret = "test-secret"

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newDeliveryRequest(eventType, payload, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

func TestGitHubHandler_ValidSignature(t *testing.T) {
	metrics.Reset()
	payload := `{"action":"opened","number":1}`

	var got *Delivery
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		got = d
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("pull_request", payload, sign(testSecret, payload)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got == nil {
		t.Fatal("handler was not called")
	}
	if got.EventType != "pull_request" {
		t.Errorf("EventType = %q, want %q", got.EventType, "pull_request")
	}
	if got.ID != "72d3162e-cc78-11e3-81ab-4c9367dc0958" {
		t.Errorf("ID = %q", got.ID)
	}
	if string(got.Payload) != payload {
		t.Errorf("Payload = %s, want %s", got.Payload, payload)
	}

	m := metrics.Get()
	if m.WebhooksReceived != 1 || m.WebhooksProcessed != 1 {
		t.Errorf("metrics = %+v, want one received and processed", m)
	}
}

func TestGitHubHandler_InvalidSignature(t *testing.T) {
	payload := `{"action":"opened","number":1}`

	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		t.Error("handler should not be called with invalid signature")
		return nil
	})

	for name, signature := range map[string]string{
		"garbage":    "sha256=invalid",
		"wrong key":  sign("other-secret", payload),
		"no prefix":  strings.TrimPrefix(sign(testSecret, payload), "sha256="),
		"wrong body": sign(testSecret, payload+" "),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newDeliveryRequest("pull_request", payload, signature))

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGitHubHandler_MissingSignature(t *testing.T) {
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		t.Error("handler should not be called with missing signature")
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("pull_request", `{"action":"opened"}`, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGitHubHandler_Ping(t *testing.T) {
	payload := `{"zen":"Keep it logically awesome.","hook_id":1}`
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		t.Error("handler should not be called for ping")
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("ping", payload, sign(testSecret, payload)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "pong" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "pong")
	}
}

func TestGitHubHandler_MissingEventType(t *testing.T) {
	payload := `{}`
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		t.Error("handler should not be called without an event type")
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("", payload, sign(testSecret, payload)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGitHubHandler_HandlerError(t *testing.T) {
	payload := `{"action":"opened"}`
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		return errors.New("boom")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("pull_request", payload, sign(testSecret, payload)))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestGitHubHandler_MethodNotAllowed(t *testing.T) {
	handler := NewGitHubHandler(testSecret, func(ctx context.Context, d *Delivery) error {
		t.Error("handler should not be called for GET")
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/github", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestGitHubHandler_NoSecretSkipsVerification(t *testing.T) {
	called := false
	handler := NewGitHubHandler("", func(ctx context.Context, d *Delivery) error {
		called = true
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newDeliveryRequest("pull_request", `{"action":"opened"}`, ""))

	if rec.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v; want 200 and handler called", rec.Code, called)
	}
}
