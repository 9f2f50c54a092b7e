package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

// HTTPTTS calls the backend synthesis endpoint: one POST per clip, the
// audio container signalled by the response Content-Type.
type HTTPTTS struct {
	apiKey string
	url    string
	client *http.Client
}

func NewHTTPTTS(apiKey string, url string) *HTTPTTS {
	return &HTTPTTS{
		apiKey: apiKey,
		url:    url,
		client: http.DefaultClient,
	}
}

func (t *HTTPTTS) Name() string {
	return "http-tts"
}

func (t *HTTPTTS) Synthesize(ctx context.Context, text string, voiceID string) (*audio.Clip, error) {
	payload := map[string]interface{}{
		"text":  text,
		"voice": voiceID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts error (status %d): %s", resp.StatusCode, string(respBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tts returned an empty clip")
	}

	return &audio.Clip{Data: data, MIME: resp.Header.Get("Content-Type")}, nil
}
