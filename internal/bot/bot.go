// Package bot wires inbound Telegram updates to the task-list engine and
// renders the replies. It owns the update loop (long poll or webhook), the
// local HTTP server, and the error → chat-message mapping.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Armin-FalDiS/task-list-bot/internal/auditlog"
	"github.com/Armin-FalDiS/task-list-bot/internal/config"
	"github.com/Armin-FalDiS/task-list-bot/internal/monitor"
	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
	"github.com/Armin-FalDiS/task-list-bot/internal/telegram"
)

const (
	pollTimeoutSec  = 50
	pollRetryDelay  = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Logger *slog.Logger

	Config *config.Config
	Client *telegram.Client
	Engine *tasklist.Engine
	Store  *tasklist.Store

	// Audit is optional; a nil journal disables auditing.
	Audit *auditlog.Store

	// Monitor is optional; without it /status omits the system section.
	Monitor *monitor.Service

	Version string
}

// Bot is the running service.
type Bot struct {
	log *slog.Logger

	cfg     *config.Config
	client  *telegram.Client
	engine  *tasklist.Engine
	store   *tasklist.Store
	audit   *auditlog.Store
	monitor *monitor.Service

	version   string
	username  string
	startedAt time.Time

	srv *http.Server
}

func New(opts Options) (*Bot, error) {
	if opts.Config == nil {
		return nil, errors.New("missing Config")
	}
	if opts.Client == nil {
		return nil, errors.New("missing Client")
	}
	if opts.Engine == nil {
		return nil, errors.New("missing Engine")
	}
	if opts.Store == nil {
		return nil, errors.New("missing Store")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return &Bot{
		log:     logger,
		cfg:     opts.Config,
		client:  opts.Client,
		engine:  opts.Engine,
		store:   opts.Store,
		audit:   opts.Audit,
		monitor: opts.Monitor,
		version: strings.TrimSpace(opts.Version),
	}, nil
}

// Run starts the local HTTP server and the configured transport, then blocks
// until ctx is cancelled. The final store save belongs to the caller.
func (b *Bot) Run(ctx context.Context) error {
	if b == nil {
		return errors.New("nil bot")
	}
	b.startedAt = time.Now()

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	b.username = me.Username
	b.log.Info("bot identity confirmed", "username", me.Username, "id", me.ID)

	if err := b.startServer(ctx); err != nil {
		return err
	}
	defer b.stopServer()

	switch strings.TrimSpace(b.cfg.Transport) {
	case config.TransportWebhook:
		url := strings.TrimRight(strings.TrimSpace(b.cfg.Webhook.PublicURL), "/") + b.cfg.WebhookPath()
		if err := b.client.SetWebhook(ctx, url, b.cfg.Webhook.SecretToken); err != nil {
			return fmt.Errorf("setWebhook: %w", err)
		}
		b.log.Info("webhook registered", "url", url)
		<-ctx.Done()
		return nil
	default:
		// Long polling requires no registered webhook.
		if err := b.client.DeleteWebhook(ctx); err != nil {
			b.log.Warn("deleteWebhook failed, polling may see conflicts", "error", err)
		}
		return b.pollLoop(ctx)
	}
}

func (b *Bot) pollLoop(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := b.client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

// handleUpdate processes one update. A panic is fatal to this update only;
// one malformed event must never take down every chat.
func (b *Bot) handleUpdate(ctx context.Context, upd telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				"update_id", upd.UpdateID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	case upd.EditedMessage != nil:
		// Edits of old command messages are ignored; acting on them would
		// replay stale intents.
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	res := parseMessage(msg, b.username)

	if res.reply != "" {
		b.send(ctx, msg.Chat.ID, res.reply, nil)
		return
	}
	if !res.hasIntent {
		return
	}

	list, err := b.engine.HandleIntent(ctx, res.intent)
	if err != nil {
		b.log.Warn("intent rejected", "op", res.intent.Op, "chat_id", res.intent.ChatID, "error", err)
		reply := replyForError(err)
		var ierr *tasklist.IndexError
		if errors.As(err, &ierr) {
			// Stale number: show the list as it is now.
			current, lerr := b.engine.HandleIntent(ctx, tasklist.ListIntent(res.intent.ChatID))
			if lerr == nil {
				reply += "\n\n" + renderText(current)
			}
		}
		b.send(ctx, msg.Chat.ID, reply, nil)
		return
	}

	b.recordAudit(ctx, res.intent, list)

	if res.wantButtons {
		text, markup := renderButtons(list)
		b.send(ctx, msg.Chat.ID, text, markup)
		return
	}

	switch res.intent.Op {
	case tasklist.OpAdd:
		confirmation := fmt.Sprintf("✅ Added task #%d: %s", list.Count, oneLine(res.intent.Text))
		b.send(ctx, msg.Chat.ID, confirmation+"\n\n"+renderText(list), nil)
	case tasklist.OpRemove:
		b.send(ctx, msg.Chat.ID, fmt.Sprintf("✅ Removed task #%d\n\n%s", res.intent.Index, renderText(list)), nil)
	case tasklist.OpClear:
		b.send(ctx, msg.Chat.ID, "🗑️ All tasks cleared!", nil)
	default:
		b.send(ctx, msg.Chat.ID, renderText(list), nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	answer := func(text string) {
		if err := b.client.AnswerCallbackQuery(ctx, cb.ID, text); err != nil {
			b.log.Warn("answerCallbackQuery failed", "error", err)
		}
	}

	chatID, index, err := parseCallback(cb.Data)
	if err != nil {
		b.log.Warn("bad callback payload", "error", err)
		answer("This button is no longer valid.")
		return
	}

	// The payload's chat must be the chat the button lives in; a payload
	// smuggled across chats is rejected, not executed.
	if cb.Message == nil || strconv.FormatInt(cb.Message.Chat.ID, 10) != chatID {
		b.log.Warn("callback chat mismatch", "payload_chat", chatID)
		answer("This button is no longer valid.")
		return
	}

	intent := tasklist.RemoveIntent(chatID, index)
	list, err := b.engine.HandleIntent(ctx, intent)
	if err != nil {
		var ierr *tasklist.IndexError
		if errors.As(err, &ierr) {
			answer("That task no longer exists — list refreshed.")
			b.refreshButtons(ctx, cb.Message, chatID)
			return
		}
		b.log.Error("callback remove failed", "chat_id", chatID, "error", err)
		answer("Could not save the change. Please try again.")
		return
	}

	b.recordAudit(ctx, intent, list)
	answer(fmt.Sprintf("Removed task #%d", index))

	text, markup := renderButtons(list)
	if err := b.client.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, markup); err != nil {
		b.log.Warn("editMessageText failed", "error", err)
	}
}

// refreshButtons re-renders the tapped message against the current list.
func (b *Bot) refreshButtons(ctx context.Context, msg *telegram.Message, chatID string) {
	list, err := b.engine.HandleIntent(ctx, tasklist.ListIntent(chatID))
	if err != nil {
		return
	}
	text, markup := renderButtons(list)
	if err := b.client.EditMessageText(ctx, msg.Chat.ID, msg.MessageID, text, markup); err != nil {
		b.log.Warn("editMessageText failed", "error", err)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := b.client.SendMessage(ctx, chatID, text, markup); err != nil {
		b.log.Error("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

// recordAudit journals an accepted mutation. Best-effort: failures are
// logged, the user flow is never affected.
func (b *Bot) recordAudit(ctx context.Context, in tasklist.Intent, list tasklist.RenderedList) {
	if b.audit == nil {
		return
	}
	var detail string
	switch in.Op {
	case tasklist.OpAdd:
		detail = in.Text
	case tasklist.OpRemove:
		detail = fmt.Sprintf("#%d", in.Index)
	case tasklist.OpClear:
	default:
		return // reads are not mutations
	}
	err := b.audit.Record(ctx, auditlog.Entry{
		ChatID:  in.ChatID,
		Action:  string(in.Op),
		Detail:  detail,
		ListLen: list.Count,
	})
	if err != nil {
		b.log.Warn("audit record failed", "op", in.Op, "error", err)
	}
}

func (b *Bot) startServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", b.handleStatus)

	if strings.TrimSpace(b.cfg.Transport) == config.TransportWebhook {
		mux.Handle(b.cfg.WebhookPath(), telegram.NewWebhookHandler(telegram.WebhookOptions{
			Logger:      b.log,
			SecretToken: b.cfg.Webhook.SecretToken,
			Handle: func(r *http.Request, upd telegram.Update) {
				b.handleUpdate(r.Context(), upd)
			},
		}))
	}

	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", b.cfg.ListenAddr, err)
	}
	b.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("http server exited", "error", err)
		}
	}()
	b.log.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

func (b *Bot) stopServer() {
	if b == nil || b.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = b.srv.Shutdown(ctx)
	b.srv = nil
}

type statusPayload struct {
	Version       string `json:"version,omitempty"`
	Username      string `json:"username,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Transport     string `json:"transport"`

	Chats int `json:"chats"`
	Tasks int `json:"tasks"`

	AuditEntries int64 `json:"audit_entries,omitempty"`

	System *monitor.Snapshot `json:"system,omitempty"`
}

func (b *Bot) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chats, tasks := b.store.Stats()
	out := statusPayload{
		Version:       b.version,
		Username:      b.username,
		UptimeSeconds: int64(time.Since(b.startedAt).Seconds()),
		Transport:     b.cfg.Transport,
		Chats:         chats,
		Tasks:         tasks,
	}
	if b.audit != nil {
		if n, err := b.audit.Count(r.Context()); err == nil {
			out.AuditEntries = n
		}
	}
	if b.monitor != nil {
		snap := b.monitor.Snapshot(r.Context())
		out.System = &snap
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
