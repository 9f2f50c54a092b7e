package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqSTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-large-v3-turbo" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := struct {
			Text string `json:"text"`
		}{
			Text: "groq transcript",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &GroqSTT{
		apiKey: "test-key",
		url:    server.URL,
		model:  "whisper-large-v3-turbo",
		client: server.Client(),
	}

	result, err := s.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "groq transcript" {
		t.Errorf("expected 'groq transcript', got '%s'", result)
	}
	if s.Name() != "groq-stt" {
		t.Errorf("expected groq-stt, got %s", s.Name())
	}
}
