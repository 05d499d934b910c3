package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
	"github.com/Armin-FalDiS/task-list-bot/internal/telegram"
)

const (
	startMessagePrivate = "🤖 Task List Bot\n\n" +
		"This bot helps manage a shared task list in groups!\n\n" +
		"Commands:\n" +
		"/list - Show current tasks\n" +
		"/add <task> - Add a new task\n" +
		"/remove <number> - Remove a task by number\n" +
		"/remove - Pick a task to remove with buttons\n" +
		"/clear - Clear all tasks\n\n" +
		"Add me to a group to start managing tasks together!"

	startMessageGroup = "🤖 Task List Bot is ready!\n\n" +
		"Use /list to see current tasks or /add <task> to add a new one."

	helpMessage = "Commands:\n" +
		"/list - Show current tasks\n" +
		"/add <task> - Add a new task\n" +
		"/remove <number> - Remove a task by number\n" +
		"/remove - Pick a task to remove with buttons\n" +
		"/clear - Clear all tasks\n\n" +
		"In groups you can also write \"add <task>\" or \"+ <task>\"."

	emptyListMessage = "📝 No tasks in the list yet!\n\nUse /add <task> to add a new task."

	// buttonLabelMax bounds button label width in runes; Telegram truncates
	// long labels unpredictably, so we do it ourselves.
	buttonLabelMax = 32
)

// renderText formats a list as the plain-text reply block.
func renderText(list tasklist.RenderedList) string {
	if list.Count == 0 {
		return emptyListMessage
	}
	var b strings.Builder
	b.WriteString("📋 Current Task List:\n\n")
	for _, task := range list.Tasks {
		fmt.Fprintf(&b, "%d. %s\n", task.Index, oneLine(task.Text))
	}
	fmt.Fprintf(&b, "\n💡 Use /remove <number> to remove a task (%d/%d)", list.Count, list.Limit)
	return b.String()
}

// renderButtons formats a list as a remove-button grid: one button per task
// carrying {chatID, displayIndex} in its callback payload.
func renderButtons(list tasklist.RenderedList) (string, *telegram.InlineKeyboardMarkup) {
	if list.Count == 0 {
		return emptyListMessage, nil
	}
	header := fmt.Sprintf("🗑 Tap a task to remove it (%d/%d):", list.Count, list.Limit)

	rows := make([][]telegram.InlineKeyboardButton, 0, len(list.Tasks))
	for _, task := range list.Tasks {
		label := trimLabel(fmt.Sprintf("%d. %s", task.Index, oneLine(task.Text)))
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         label,
			CallbackData: encodeCallback(list.ChatID, task.Index),
		}})
	}
	return header, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// replyForError maps an engine error to a short, specific user message.
// Internal error text never reaches the chat.
func replyForError(err error) string {
	var verr *tasklist.ValidationError
	if errors.As(err, &verr) {
		return "❌ " + upperFirst(verr.Reason) + "."
	}
	var cerr *tasklist.CapacityError
	if errors.As(err, &cerr) {
		return fmt.Sprintf("❌ The list is full (%d/%d). Remove a task before adding another.", cerr.Count, cerr.Limit)
	}
	var ierr *tasklist.IndexError
	if errors.As(err, &ierr) {
		return fmt.Sprintf("❌ Task %d no longer exists — the list has changed.", ierr.Index)
	}
	return "⚠️ Something went wrong and your change was NOT saved. Please try again."
}

func oneLine(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}

func upperFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

func trimLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= buttonLabelMax {
		return label
	}
	return string(runes[:buttonLabelMax-1]) + "…"
}
