package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

func testUtterance() *audio.Utterance {
	return &audio.Utterance{
		ID:     "utt-1",
		PCM:    make([]byte, 640),
		Format: audio.DefaultFormat(),
	}
}

func TestOpenAISTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		header := make([]byte, 4)
		file.Read(header)
		if string(header) != "RIFF" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}

		resp := struct {
			Text string `json:"text"`
		}{
			Text: "transcribed text",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &OpenAISTT{
		apiKey: "test-key",
		url:    server.URL,
		model:  "whisper-1",
		client: server.Client(),
	}

	result, err := s.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "transcribed text" {
		t.Errorf("expected 'transcribed text', got '%s'", result)
	}

	if s.Name() != "openai_stt" {
		t.Errorf("expected openai_stt, got %s", s.Name())
	}
}

func TestOpenAISTTErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	s := &OpenAISTT{
		apiKey: "test-key",
		url:    server.URL,
		model:  "whisper-1",
		client: server.Client(),
	}

	if _, err := s.Transcribe(context.Background(), testUtterance()); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
