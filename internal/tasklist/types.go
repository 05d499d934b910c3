package tasklist

import "strings"

const (
	// DefaultMaxTasks is the per-chat task cap when the config does not set one.
	DefaultMaxTasks = 42

	// DefaultMaxTextLen is the per-task text length cap in runes.
	DefaultMaxTextLen = 256
)

// Op identifies one engine operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
	OpList   Op = "list"
)

// Intent is one parsed request to the engine, independent of how it arrived
// (command text, keyword message, or button callback).
//
// Text is only meaningful for OpAdd; Index (1-based display index) only for
// OpRemove.
type Intent struct {
	Op     Op
	ChatID string
	Text   string
	Index  int
}

// AddIntent builds an add intent for the given chat.
func AddIntent(chatID, text string) Intent {
	return Intent{Op: OpAdd, ChatID: strings.TrimSpace(chatID), Text: text}
}

// RemoveIntent builds a remove intent targeting a 1-based display index.
func RemoveIntent(chatID string, index int) Intent {
	return Intent{Op: OpRemove, ChatID: strings.TrimSpace(chatID), Index: index}
}

// ClearIntent builds a clear intent for the given chat.
func ClearIntent(chatID string) Intent {
	return Intent{Op: OpClear, ChatID: strings.TrimSpace(chatID)}
}

// ListIntent builds a read-only list intent for the given chat.
func ListIntent(chatID string) Intent {
	return Intent{Op: OpList, ChatID: strings.TrimSpace(chatID)}
}

// RenderedTask pairs a task text with its current 1-based display index.
type RenderedTask struct {
	Index int
	Text  string
}

// RenderedList is the derived view of one chat's list, produced fresh on
// every reply. Indices are contiguous 1..Count.
type RenderedList struct {
	ChatID string
	Tasks  []RenderedTask
	Count  int
	Limit  int
}

func renderTasks(chatID string, tasks []string, limit int) RenderedList {
	out := RenderedList{ChatID: chatID, Count: len(tasks), Limit: limit}
	if len(tasks) == 0 {
		return out
	}
	out.Tasks = make([]RenderedTask, len(tasks))
	for i, text := range tasks {
		out.Tasks[i] = RenderedTask{Index: i + 1, Text: text}
	}
	return out
}
