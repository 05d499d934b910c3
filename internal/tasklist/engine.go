package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// Engine applies intents against the store, enforcing numbering, capacity
// and text invariants. Mutations on the same chat are serialized in arrival
// order; different chats proceed concurrently except during the shared
// document write inside Store.Commit.
type Engine struct {
	log *slog.Logger

	store      *Store
	maxTasks   int
	maxTextLen int

	chatsMu sync.Mutex
	chats   map[string]*sync.Mutex
}

type Options struct {
	Logger *slog.Logger

	// Store is the backing task store. Required.
	Store *Store

	// MaxTasks caps each chat's list. If <= 0, DefaultMaxTasks is used.
	MaxTasks int

	// MaxTextLen caps task text length in runes. If <= 0, DefaultMaxTextLen
	// is used.
	MaxTextLen int
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("missing Store")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	maxTasks := opts.MaxTasks
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	maxTextLen := opts.MaxTextLen
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLen
	}

	return &Engine{
		log:        logger,
		store:      opts.Store,
		maxTasks:   maxTasks,
		maxTextLen: maxTextLen,
		chats:      make(map[string]*sync.Mutex),
	}, nil
}

// MaxTasks returns the configured per-chat capacity.
func (e *Engine) MaxTasks() int {
	if e == nil {
		return 0
	}
	return e.maxTasks
}

// HandleIntent is the single entry point for the transport layer. It returns
// the freshly rendered list on success and a typed error
// (*ValidationError, *CapacityError, *IndexError, or a persistence error)
// otherwise. Failed intents leave both memory and disk unchanged.
func (e *Engine) HandleIntent(ctx context.Context, in Intent) (RenderedList, error) {
	if e == nil || e.store == nil {
		return RenderedList{}, errors.New("engine not initialized")
	}
	if err := ctx.Err(); err != nil {
		return RenderedList{}, err
	}

	chatID := strings.TrimSpace(in.ChatID)
	if chatID == "" {
		return RenderedList{}, &ValidationError{Reason: "missing chat id"}
	}

	switch in.Op {
	case OpList:
		// Pure read: no chat lock, no persistence. Store.Tasks copies under
		// the store's read lock, so a torn list is never observed.
		return renderTasks(chatID, e.store.Tasks(chatID), e.maxTasks), nil
	case OpAdd:
		return e.add(chatID, in.Text)
	case OpRemove:
		return e.remove(chatID, in.Index)
	case OpClear:
		return e.clear(chatID)
	default:
		return RenderedList{}, &ValidationError{Reason: fmt.Sprintf("unknown operation %q", string(in.Op))}
	}
}

func (e *Engine) add(chatID, text string) (RenderedList, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return RenderedList{}, &ValidationError{Reason: "empty task text"}
	}
	if n := utf8.RuneCountInString(text); n > e.maxTextLen {
		return RenderedList{}, &ValidationError{Reason: fmt.Sprintf("task text too long (%d runes, max %d)", n, e.maxTextLen)}
	}

	mu := e.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	tasks := e.store.Tasks(chatID)
	if len(tasks) >= e.maxTasks {
		return RenderedList{}, &CapacityError{Count: len(tasks), Limit: e.maxTasks}
	}

	// Append only: prior tasks keep their display numbers.
	next := append(tasks, text)
	if err := e.store.Commit(chatID, next); err != nil {
		e.log.Error("task add not persisted", "chat_id", chatID, "error", err)
		return RenderedList{}, fmt.Errorf("persist add: %w", err)
	}
	return renderTasks(chatID, next, e.maxTasks), nil
}

func (e *Engine) remove(chatID string, index int) (RenderedList, error) {
	mu := e.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	tasks := e.store.Tasks(chatID)
	// Out-of-range covers stale buttons from a previous render; the index is
	// reported back, never clamped onto the shifted list.
	if index < 1 || index > len(tasks) {
		return RenderedList{}, &IndexError{Index: index, Count: len(tasks)}
	}

	next := make([]string, 0, len(tasks)-1)
	next = append(next, tasks[:index-1]...)
	next = append(next, tasks[index:]...)

	if err := e.store.Commit(chatID, next); err != nil {
		e.log.Error("task remove not persisted", "chat_id", chatID, "error", err)
		return RenderedList{}, fmt.Errorf("persist remove: %w", err)
	}
	return renderTasks(chatID, next, e.maxTasks), nil
}

func (e *Engine) clear(chatID string) (RenderedList, error) {
	mu := e.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.Commit(chatID, nil); err != nil {
		e.log.Error("task clear not persisted", "chat_id", chatID, "error", err)
		return RenderedList{}, fmt.Errorf("persist clear: %w", err)
	}
	return renderTasks(chatID, nil, e.maxTasks), nil
}

// chatLock returns the mutex serializing mutations for one chat, creating it
// on first use. Chat entries come and go but their mutexes are kept; the set
// of chats a single bot serves stays small.
func (e *Engine) chatLock(chatID string) *sync.Mutex {
	e.chatsMu.Lock()
	defer e.chatsMu.Unlock()
	mu, ok := e.chats[chatID]
	if !ok {
		mu = &sync.Mutex{}
		e.chats[chatID] = mu
	}
	return mu
}
