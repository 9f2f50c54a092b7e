package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

// StreamTTS synthesizes over a persistent websocket. The connection is
// dialed lazily, reused across requests, and dropped on any protocol
// error so the next request reconnects clean. Binary messages carry raw
// PCM; text messages carry control signals, "EOS" ending a request.
type StreamTTS struct {
	apiKey string
	host   string
	scheme string
	mu     sync.Mutex
	conn   *websocket.Conn
}

func NewStreamTTS(apiKey string, host string) *StreamTTS {
	return &StreamTTS{
		apiKey: apiKey,
		host:   host,
		scheme: "wss",
	}
}

func (t *StreamTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tts stream: %w", err)
	}

	conn.SetReadLimit(10 * 1024 * 1024)

	t.conn = conn
	return conn, nil
}

func (t *StreamTTS) Synthesize(ctx context.Context, text string, voiceID string) (*audio.Clip, error) {
	var pcm []byte
	err := t.streamSynthesize(ctx, text, voiceID, func(chunk []byte) error {
		pcm = append(pcm, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &audio.Clip{Data: pcm, MIME: "audio/l16"}, nil
}

func (t *StreamTTS) streamSynthesize(ctx context.Context, text string, voiceID string, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":  text,
		"voice": voiceID,
		"speed": 1.0,
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read synthesis stream: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("synthesis error: %s", msg)
			}
		}
	}
}

func (t *StreamTTS) Name() string {
	return "stream-tts"
}

func (t *StreamTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
