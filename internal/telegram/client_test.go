package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeAPI(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{Token: "123:TESTTOKEN", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestClient_RequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(ClientOptions{Token: "   "}); err == nil {
		t.Fatalf("NewClient accepted empty token")
	}
}

func TestClient_CallRoutesMethodAndArgs(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	c, _ := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	if err := c.SendMessage(context.Background(), 7, "hello", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/bot123:TESTTOKEN/sendMessage" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotBody["chat_id"] != float64(7) || gotBody["text"] != "hello" {
		t.Fatalf("body=%v", gotBody)
	}
	if _, present := gotBody["reply_markup"]; present {
		t.Fatalf("nil markup was serialized: %v", gotBody)
	}
}

func TestClient_APIErrorSurfaced(t *testing.T) {
	t.Parallel()

	c, _ := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := c.SendMessage(context.Background(), 1, "x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Code != 400 || apiErr.Description == "" {
		t.Fatalf("APIError=%+v", apiErr)
	}
}

func TestClient_GetMe(t *testing.T) {
	t.Parallel()

	c, _ := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"username":"TaskListBot"}}`))
	})

	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 42 || me.Username != "TaskListBot" {
		t.Fatalf("me=%+v", me)
	}
}

func TestClient_GetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	var gotArgs map[string]any
	c, _ := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotArgs)
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":100,"message":{"message_id":1,"chat":{"id":7,"type":"group"},"text":"/list"}}]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 99, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if gotArgs["offset"] != float64(99) {
		t.Fatalf("offset sent = %v", gotArgs["offset"])
	}
	if len(updates) != 1 || updates[0].UpdateID != 100 {
		t.Fatalf("updates=%+v", updates)
	}
	if updates[0].Message == nil || updates[0].Message.Chat.ID != 7 {
		t.Fatalf("message=%+v", updates[0].Message)
	}
}

func TestClient_MalformedEnvelope(t *testing.T) {
	t.Parallel()

	c, _ := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	})

	if err := c.SendMessage(context.Background(), 1, "x", nil); err == nil {
		t.Fatalf("malformed envelope accepted")
	}
}
