package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/habitus-ai/habitus-voice/pkg/voice"
)

func TestCoachChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var payload struct {
			Messages       []voice.Message `json:"messages"`
			ConversationID string          `json:"conversation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Content != "hello" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("X-Conversation-Id", "conv-42")
		w.Write([]byte("{\"text\":\"Hi \"}\n{\"text\":\"there!\"}\n"))
	}))
	defer server.Close()

	c := &CoachChat{apiKey: "test-key", url: server.URL, client: server.Client()}

	var deltas []string
	result, err := c.Stream(context.Background(), []voice.Message{
		{Role: voice.RoleUser, Content: "hello"},
	}, "", func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Reply != "Hi there!" {
		t.Errorf("expected 'Hi there!', got '%s'", result.Reply)
	}
	if result.ConversationID != "conv-42" {
		t.Errorf("expected conversation id conv-42, got '%s'", result.ConversationID)
	}
	if len(deltas) != 2 {
		t.Errorf("expected 2 deltas, got %d", len(deltas))
	}
}

func TestCoachChatSendsConversationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.ConversationID != "conv-42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("{\"text\":\"ok\"}\n"))
	}))
	defer server.Close()

	c := &CoachChat{apiKey: "test-key", url: server.URL, client: server.Client()}

	result, err := c.Stream(context.Background(), nil, "conv-42", func(string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ConversationID != "conv-42" {
		t.Errorf("expected the id kept when the server sends none, got '%s'", result.ConversationID)
	}
}

func TestCoachChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := &CoachChat{apiKey: "test-key", url: server.URL, client: server.Client()}

	if _, err := c.Stream(context.Background(), nil, "", func(string) {}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestCoachChatMalformedDelta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json\n"))
	}))
	defer server.Close()

	c := &CoachChat{apiKey: "test-key", url: server.URL, client: server.Client()}

	if _, err := c.Stream(context.Background(), nil, "", func(string) {}); err == nil {
		t.Fatal("expected error for a malformed delta line")
	}
}
