package tasklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const storeSchemaVersion = 1

// Store owns the chat-id → task-list mapping and its single on-disk JSON
// document. All reads and mutations go through the store; no other component
// keeps a live reference to list contents.
//
// The whole mapping is rewritten on every commit. That is deliberate: lists
// are human-sized and writes are infrequent, so one atomic document beats
// partial-update bookkeeping.
type Store struct {
	path string

	mu    sync.RWMutex
	chats map[string][]string
}

type storeFile struct {
	SchemaVersion int                 `json:"schema_version"`
	Chats         map[string][]string `json:"chats"`
}

// NewEmpty creates a store with no chats. Used for first runs and for
// explicit start-empty recovery after a corrupt document.
func NewEmpty(path string) *Store {
	return &Store{
		path:  filepath.Clean(strings.TrimSpace(path)),
		chats: make(map[string][]string),
	}
}

// Open reads the backing document at path. A missing file yields an empty
// store; an unparsable one fails with ErrCorruptStore so the caller can
// decide between aborting and starting empty.
func Open(path string) (*Store, error) {
	s := NewEmpty(path)
	if s.path == "" || s.path == "." {
		return nil, errors.New("missing store path")
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read task store: %w", err)
	}

	chats, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	s.chats = chats
	return s, nil
}

// decodeDocument parses either the current document shape
// ({"schema_version":1,"chats":{...}}) or the legacy shape the original bot
// wrote (top-level chat mapping with [{"id":N,"text":"..."}] entries).
// Unknown top-level keys are ignored so future additive fields stay readable.
func decodeDocument(b []byte) (map[string][]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, err
	}

	if raw, ok := top["chats"]; ok {
		var chats map[string][]string
		if err := json.Unmarshal(raw, &chats); err != nil {
			return nil, fmt.Errorf("chats mapping: %w", err)
		}
		return normalizeChats(chats), nil
	}

	// Legacy document: every top-level value must be a chat entry.
	chats := make(map[string][]string, len(top))
	for chatID, raw := range top {
		tasks, err := decodeLegacyEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("chat %q: %w", chatID, err)
		}
		chats[chatID] = tasks
	}
	return normalizeChats(chats), nil
}

type legacyTask struct {
	Text string `json:"text"`
}

func decodeLegacyEntry(raw json.RawMessage) ([]string, error) {
	// Plain string arrays are accepted here too, so a half-migrated file
	// still loads.
	var texts []string
	if err := json.Unmarshal(raw, &texts); err == nil {
		return texts, nil
	}
	var items []legacyTask
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	texts = make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, item.Text)
	}
	return texts, nil
}

func normalizeChats(chats map[string][]string) map[string][]string {
	out := make(map[string][]string, len(chats))
	for chatID, tasks := range chats {
		chatID = strings.TrimSpace(chatID)
		if chatID == "" {
			continue
		}
		kept := make([]string, 0, len(tasks))
		for _, text := range tasks {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			kept = append(kept, text)
		}
		if len(kept) == 0 {
			continue
		}
		out[chatID] = kept
	}
	return out
}

// Path returns the backing document path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Tasks returns a copy of the chat's current list. Missing chats yield an
// empty list.
func (s *Store) Tasks(chatID string) []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.chats[chatID]
	if len(tasks) == 0 {
		return nil
	}
	out := make([]string, len(tasks))
	copy(out, tasks)
	return out
}

// Commit replaces the chat's list and flushes the whole mapping to disk
// before returning. An empty or nil list drops the chat entry entirely, so a
// cleared chat cannot resurrect stale tasks after a reload. If the write
// fails the in-memory state is rolled back and the error is returned; the
// triggering user action must not be acknowledged as successful.
func (s *Store) Commit(chatID string, tasks []string) error {
	if s == nil {
		return errors.New("nil store")
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errors.New("missing chat id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.chats[chatID]
	if len(tasks) == 0 {
		delete(s.chats, chatID)
	} else {
		cp := make([]string, len(tasks))
		copy(cp, tasks)
		s.chats[chatID] = cp
	}

	if err := s.saveLocked(); err != nil {
		if had {
			s.chats[chatID] = prev
		} else {
			delete(s.chats, chatID)
		}
		return err
	}
	return nil
}

// Save flushes the current mapping to disk. Used for the final save at
// shutdown; every Commit already writes through.
func (s *Store) Save() error {
	if s == nil {
		return errors.New("nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	doc := storeFile{
		SchemaVersion: storeSchemaVersion,
		Chats:         s.chats,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	// Write atomically so a crash mid-write never leaves a torn document.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Stats reports the number of chats and total tasks currently held.
func (s *Store) Stats() (chats int, tasks int) {
	if s == nil {
		return 0, 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, list := range s.chats {
		tasks += len(list)
	}
	return len(s.chats), tasks
}
