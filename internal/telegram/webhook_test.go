package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postUpdate(t *testing.T, h http.Handler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretTokenHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_DeliversUpdate(t *testing.T) {
	t.Parallel()

	var got *Update
	h := NewWebhookHandler(WebhookOptions{
		SecretToken: "s3cret",
		Handle: func(_ *http.Request, upd Update) {
			got = &upd
		},
	})

	rec := postUpdate(t, h, "s3cret", `{"update_id":5,"message":{"message_id":1,"chat":{"id":-100,"type":"supergroup"},"text":"/add milk"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got == nil || got.UpdateID != 5 || got.Message == nil || got.Message.Chat.ID != -100 {
		t.Fatalf("update=%+v", got)
	}
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	t.Parallel()

	called := false
	h := NewWebhookHandler(WebhookOptions{
		SecretToken: "s3cret",
		Handle:      func(*http.Request, Update) { called = true },
	})

	for _, secret := range []string{"", "wrong", "S3CRET"} {
		rec := postUpdate(t, h, secret, `{"update_id":1}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("secret %q: status=%d, want 401", secret, rec.Code)
		}
	}
	if called {
		t.Fatalf("handler ran despite bad secret")
	}
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	t.Parallel()

	called := false
	h := NewWebhookHandler(WebhookOptions{
		Handle: func(*http.Request, Update) { called = true },
	})

	if rec := postUpdate(t, h, "", `{"update_id":1}`); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !called {
		t.Fatalf("handler not called")
	}
}

func TestWebhook_RejectsNonPostAndBadBody(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(WebhookOptions{})

	req := httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", rec.Code)
	}

	if rec := postUpdate(t, h, "", `{{{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status=%d", rec.Code)
	}
}
