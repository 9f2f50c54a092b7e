package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestStreamTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		err = wsjson.Read(r.Context(), conn, &req)
		if err != nil {
			return
		}
		if req["voice"] != "coach-f1" {
			conn.Write(r.Context(), websocket.MessageText, []byte("ERR: unknown voice"))
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5, 6})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	tts := &StreamTTS{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
	}

	clip, err := tts.Synthesize(context.Background(), "hello", "coach-f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(clip.Data) != 6 {
		t.Errorf("expected 6 bytes, got %d", len(clip.Data))
	}
	if clip.MIME != "audio/l16" {
		t.Errorf("expected audio/l16, got %s", clip.MIME)
	}

	if tts.Name() != "stream-tts" {
		t.Errorf("expected stream-tts, got %s", tts.Name())
	}

	tts.Close()
}

func TestStreamTTSServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		conn.Write(r.Context(), websocket.MessageText, []byte("ERR: synthesis failed"))
	}))
	defer server.Close()

	tts := &StreamTTS{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
	}

	if _, err := tts.Synthesize(context.Background(), "hello", "coach-f1"); err == nil {
		t.Fatal("expected error from the server")
	}
}
