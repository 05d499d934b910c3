package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
)

func renderedList(chatID string, limit int, tasks ...string) tasklist.RenderedList {
	list := tasklist.RenderedList{ChatID: chatID, Count: len(tasks), Limit: limit}
	for i, text := range tasks {
		list.Tasks = append(list.Tasks, tasklist.RenderedTask{Index: i + 1, Text: text})
	}
	return list
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	got := renderText(renderedList("-100", 42, "Buy milk", "Pay bills"))
	want := "📋 Current Task List:\n\n" +
		"1. Buy milk\n" +
		"2. Pay bills\n" +
		"\n💡 Use /remove <number> to remove a task (2/42)"
	if got != want {
		t.Fatalf("renderText:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderText_Empty(t *testing.T) {
	t.Parallel()

	if got := renderText(renderedList("-100", 42)); got != emptyListMessage {
		t.Fatalf("renderText empty: %q", got)
	}
}

func TestRenderText_FlattensNewlines(t *testing.T) {
	t.Parallel()

	got := renderText(renderedList("-100", 42, "line one\r\nline two"))
	if strings.Count(got, "1. line one  line two") != 1 {
		t.Fatalf("newlines not flattened:\n%s", got)
	}
}

func TestRenderButtons(t *testing.T) {
	t.Parallel()

	header, markup := renderButtons(renderedList("-100", 42, "Buy milk", "Pay bills"))
	if header != "🗑 Tap a task to remove it (2/42):" {
		t.Fatalf("header=%q", header)
	}
	if markup == nil || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("markup=%+v", markup)
	}
	for i, row := range markup.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons", i, len(row))
		}
	}
	first := markup.InlineKeyboard[0][0]
	if first.Text != "1. Buy milk" {
		t.Fatalf("label=%q", first.Text)
	}
	if first.CallbackData != "rm:-100:1" {
		t.Fatalf("payload=%q", first.CallbackData)
	}
}

func TestRenderButtons_Empty(t *testing.T) {
	t.Parallel()

	header, markup := renderButtons(renderedList("-100", 42))
	if header != emptyListMessage || markup != nil {
		t.Fatalf("header=%q markup=%+v", header, markup)
	}
}

func TestRenderButtons_TruncatesLongLabels(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ő", 100)
	_, markup := renderButtons(renderedList("-100", 42, long))
	label := markup.InlineKeyboard[0][0].Text
	if runes := []rune(label); len(runes) != buttonLabelMax {
		t.Fatalf("label is %d runes: %q", len(runes), label)
	}
	if !strings.HasSuffix(label, "…") {
		t.Fatalf("label %q not ellipsized", label)
	}
}

func TestReplyForError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			"validation",
			&tasklist.ValidationError{Reason: "task text is empty"},
			"❌ Task text is empty.",
		},
		{
			"capacity",
			&tasklist.CapacityError{Count: 42, Limit: 42},
			"❌ The list is full (42/42). Remove a task before adding another.",
		},
		{
			"index",
			&tasklist.IndexError{Index: 7, Count: 2},
			"❌ Task 7 no longer exists — the list has changed.",
		},
		{
			"persistence failure stays internal",
			errors.New("write /data/task_list.json: permission denied"),
			"⚠️ Something went wrong and your change was NOT saved. Please try again.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := replyForError(tc.err); got != tc.want {
				t.Fatalf("reply=%q, want %q", got, tc.want)
			}
		})
	}
}
