package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
	"github.com/Armin-FalDiS/task-list-bot/internal/telegram"
)

// callbackPrefix tags remove-button payloads: "rm:<chatID>:<displayIndex>".
const callbackPrefix = "rm"

// parseResult is the outcome of mapping one inbound message.
type parseResult struct {
	// intent is set when the message maps to an engine operation.
	intent    tasklist.Intent
	hasIntent bool

	// reply is a static response (help text, usage correction) sent without
	// touching the engine.
	reply string

	// wantButtons asks for the list rendered as a remove-button grid
	// (bare /remove).
	wantButtons bool
}

// parseMessage maps a message to an engine intent or a static reply.
// Messages that are none of the bot's business return a zero parseResult.
func parseMessage(msg *telegram.Message, botUsername string) parseResult {
	if msg == nil || msg.From != nil && msg.From.IsBot {
		return parseResult{}
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return parseResult{}
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if strings.HasPrefix(text, "/") {
		return parseCommand(text, chatID, msg.Chat, botUsername)
	}

	// Keyword shorthand, group chats only (the bot stays quiet about plain
	// text in private conversations by command, loud in groups by custom).
	if msg.Chat.IsGroup() {
		lower := strings.ToLower(text)
		for _, prefix := range []string{"add ", "+ "} {
			if strings.HasPrefix(lower, prefix) {
				task := strings.TrimSpace(text[len(prefix):])
				if task == "" {
					return parseResult{}
				}
				return parseResult{intent: tasklist.AddIntent(chatID, task), hasIntent: true}
			}
		}
	}
	return parseResult{}
}

func parseCommand(text, chatID string, chat telegram.Chat, botUsername string) parseResult {
	fields := strings.Fields(text)
	cmd := fields[0]
	args := fields[1:]

	// "/add@MyBot foo" addresses this bot; commands aimed at other bots in
	// the group are ignored.
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		target := cmd[at+1:]
		cmd = cmd[:at]
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return parseResult{}
		}
	}

	switch strings.ToLower(cmd) {
	case "/start":
		if chat.Type == telegram.ChatTypePrivate {
			return parseResult{reply: startMessagePrivate}
		}
		return parseResult{reply: startMessageGroup}
	case "/help":
		return parseResult{reply: helpMessage}
	case "/list":
		return parseResult{intent: tasklist.ListIntent(chatID), hasIntent: true}
	case "/add":
		task := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
		if task == "" {
			return parseResult{reply: "❌ Please provide a task to add!\nExample: /add Buy groceries"}
		}
		return parseResult{intent: tasklist.AddIntent(chatID, task), hasIntent: true}
	case "/remove":
		if len(args) == 0 {
			// No number: offer the button grid instead of an error.
			return parseResult{wantButtons: true, intent: tasklist.ListIntent(chatID), hasIntent: true}
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return parseResult{reply: "❌ Please provide a valid task number!\nExample: /remove 1"}
		}
		return parseResult{intent: tasklist.RemoveIntent(chatID, n), hasIntent: true}
	case "/clear":
		return parseResult{intent: tasklist.ClearIntent(chatID), hasIntent: true}
	default:
		return parseResult{}
	}
}

// encodeCallback builds the payload carried by a remove button.
func encodeCallback(chatID string, displayIndex int) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, chatID, displayIndex)
}

// parseCallback validates a button payload. Malformed payloads are rejected
// here at the boundary, before anything reaches the engine.
func parseCallback(data string) (chatID string, displayIndex int, err error) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return "", 0, fmt.Errorf("malformed callback payload %q", data)
	}
	chatID = strings.TrimSpace(parts[1])
	if chatID == "" {
		return "", 0, fmt.Errorf("callback payload missing chat id")
	}
	displayIndex, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, fmt.Errorf("callback payload index: %w", err)
	}
	return chatID, displayIndex, nil
}
