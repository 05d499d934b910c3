package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// SecretTokenHeader is the header Telegram attaches to webhook requests when
// a secret token was registered via setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler decodes webhook updates and hands them to Handle. Secret
// verification happens before any body parsing; updates that fail to decode
// are answered 400 and dropped.
type WebhookHandler struct {
	log    *slog.Logger
	secret string
	handle func(*http.Request, Update)
}

type WebhookOptions struct {
	Logger *slog.Logger

	// SecretToken, when non-empty, must match the SecretTokenHeader of every
	// request. Requests without a match are rejected with 401.
	SecretToken string

	// Handle receives each decoded update. Called synchronously; the 200 is
	// written after it returns.
	Handle func(*http.Request, Update)
}

func NewWebhookHandler(opts WebhookOptions) *WebhookHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &WebhookHandler{
		log:    logger,
		secret: strings.TrimSpace(opts.SecretToken),
		handle: opts.Handle,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, "not configured", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn("webhook request with bad secret token", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.log.Warn("webhook update failed to decode", "error", err)
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}

	if h.handle != nil {
		h.handle(r, upd)
	}
	w.WriteHeader(http.StatusOK)
}
