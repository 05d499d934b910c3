package bot

import (
	"testing"

	"github.com/Armin-FalDiS/task-list-bot/internal/tasklist"
	"github.com/Armin-FalDiS/task-list-bot/internal/telegram"
)

func groupMsg(text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		Chat:      telegram.Chat{ID: -100, Type: telegram.ChatTypeGroup},
		Text:      text,
	}
}

func privateMsg(text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		Chat:      telegram.Chat{ID: 55, Type: telegram.ChatTypePrivate},
		Text:      text,
	}
}

func TestParseMessage_Commands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  *telegram.Message
		want tasklist.Intent
	}{
		{"list", groupMsg("/list"), tasklist.ListIntent("-100")},
		{"add", groupMsg("/add Buy groceries"), tasklist.AddIntent("-100", "Buy groceries")},
		{"add multiword keeps case", groupMsg("/add Call Mom ASAP"), tasklist.AddIntent("-100", "Call Mom ASAP")},
		{"remove", groupMsg("/remove 3"), tasklist.RemoveIntent("-100", 3)},
		{"clear", groupMsg("/clear"), tasklist.ClearIntent("-100")},
		{"command with bot suffix", groupMsg("/add@TaskListBot milk"), tasklist.AddIntent("-100", "milk")},
		{"suffix case-insensitive", groupMsg("/list@tasklistbot"), tasklist.ListIntent("-100")},
		{"keyword add", groupMsg("add wash the car"), tasklist.AddIntent("-100", "wash the car")},
		{"keyword add capitalized", groupMsg("Add wash the car"), tasklist.AddIntent("-100", "wash the car")},
		{"keyword plus", groupMsg("+ buy bread"), tasklist.AddIntent("-100", "buy bread")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseMessage(tc.msg, "TaskListBot")
			if !got.hasIntent {
				t.Fatalf("no intent (reply=%q)", got.reply)
			}
			if got.intent != tc.want {
				t.Fatalf("intent=%+v, want %+v", got.intent, tc.want)
			}
		})
	}
}

func TestParseMessage_StaticReplies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  *telegram.Message
	}{
		{"start private", privateMsg("/start")},
		{"start group", groupMsg("/start")},
		{"help", groupMsg("/help")},
		{"add without text", groupMsg("/add")},
		{"add with spaces only", groupMsg("/add    ")},
		{"remove with junk", groupMsg("/remove first")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseMessage(tc.msg, "TaskListBot")
			if got.hasIntent {
				t.Fatalf("unexpected intent %+v", got.intent)
			}
			if got.reply == "" {
				t.Fatalf("no reply")
			}
		})
	}

	// Private and group /start differ.
	if parseMessage(privateMsg("/start"), "").reply == parseMessage(groupMsg("/start"), "").reply {
		t.Fatalf("private and group /start replies are identical")
	}
}

func TestParseMessage_BareRemoveWantsButtons(t *testing.T) {
	t.Parallel()

	got := parseMessage(groupMsg("/remove"), "TaskListBot")
	if !got.wantButtons || !got.hasIntent {
		t.Fatalf("got=%+v, want button-grid list", got)
	}
	if got.intent.Op != tasklist.OpList {
		t.Fatalf("op=%s, want list", got.intent.Op)
	}
}

func TestParseMessage_Ignored(t *testing.T) {
	t.Parallel()

	botMsg := groupMsg("add loop forever")
	botMsg.From = &telegram.User{ID: 9, IsBot: true}

	cases := []struct {
		name string
		msg  *telegram.Message
	}{
		{"nil message", nil},
		{"empty text", groupMsg("   ")},
		{"plain chatter", groupMsg("what's for lunch?")},
		{"keyword in private chat", privateMsg("add buy milk")},
		{"keyword with no task", groupMsg("add ")},
		{"unknown command", groupMsg("/definitely_not_a_command")},
		{"command for another bot", groupMsg("/add@OtherBot milk")},
		{"message from a bot", botMsg},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseMessage(tc.msg, "TaskListBot")
			if got.hasIntent || got.reply != "" || got.wantButtons {
				t.Fatalf("not ignored: %+v", got)
			}
		})
	}
}

func TestCallbackPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	data := encodeCallback("-100", 3)
	if data != "rm:-100:3" {
		t.Fatalf("payload=%q", data)
	}
	chatID, idx, err := parseCallback(data)
	if err != nil {
		t.Fatalf("parseCallback: %v", err)
	}
	if chatID != "-100" || idx != 3 {
		t.Fatalf("parsed %q %d", chatID, idx)
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"", "rm", "rm:", "rm:7", "rm:7:", "rm:7:one", "rm::2",
		"del:7:1", "rm:7:1:extra",
	} {
		if _, _, err := parseCallback(data); err == nil {
			t.Fatalf("payload %q accepted", data)
		}
	}
}
