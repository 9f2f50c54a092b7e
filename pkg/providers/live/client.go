package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/habitus-ai/habitus-voice/pkg/voice"
)

// Dialer opens duplex sessions against the realtime speech service. The
// handshake is a session.setup/session.ready JSON exchange; after that,
// binary messages carry PCM in both directions and text messages carry
// JSON events.
type Dialer struct {
	apiKey string
	host   string
	scheme string
}

func NewDialer(apiKey string, host string) *Dialer {
	return &Dialer{
		apiKey: apiKey,
		host:   host,
		scheme: "wss",
	}
}

func (d *Dialer) Name() string {
	return "realtime-ws"
}

type setupMessage struct {
	Type         string `json:"type"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions,omitempty"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

type serverEvent struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Message string `json:"message,omitempty"`
}

func (d *Dialer) Dial(ctx context.Context, params voice.LiveParams) (voice.LiveConn, error) {
	u := url.URL{Scheme: d.scheme, Host: d.host, Path: "/v1/live", RawQuery: "api_key=" + d.apiKey}
	wsConn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime service: %w", err)
	}
	wsConn.SetReadLimit(10 * 1024 * 1024)

	setup := setupMessage{
		Type:         "session.setup",
		Voice:        params.Voice,
		Instructions: params.Instructions,
		SampleRate:   params.Format.SampleRate,
		Channels:     params.Format.Channels,
	}
	if err := wsjson.Write(ctx, wsConn, setup); err != nil {
		wsConn.Close(websocket.StatusAbnormalClosure, "setup write failed")
		return nil, fmt.Errorf("failed to send session setup: %w", err)
	}

	var ready serverEvent
	if err := wsjson.Read(ctx, wsConn, &ready); err != nil {
		wsConn.Close(websocket.StatusAbnormalClosure, "setup read failed")
		return nil, fmt.Errorf("failed to read session ready: %w", err)
	}
	switch ready.Type {
	case "session.ready":
	case "error":
		wsConn.Close(websocket.StatusNormalClosure, "")
		return nil, fmt.Errorf("%w: %s", voice.ErrProtocol, ready.Message)
	default:
		wsConn.Close(websocket.StatusProtocolError, "unexpected handshake event")
		return nil, fmt.Errorf("%w: unexpected handshake event %q", voice.ErrProtocol, ready.Type)
	}

	return &conn{ws: wsConn}, nil
}

type conn struct {
	ws *websocket.Conn
}

func (c *conn) SendAudio(ctx context.Context, chunk []byte) error {
	return c.ws.Write(ctx, websocket.MessageBinary, chunk)
}

func (c *conn) SendText(ctx context.Context, text string) error {
	return wsjson.Write(ctx, c.ws, map[string]string{
		"type": "text",
		"text": text,
	})
}

func (c *conn) Receive(ctx context.Context) (*voice.LiveFrame, error) {
	for {
		messageType, payload, err := c.ws.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return &voice.LiveFrame{Kind: voice.LiveClosed}, nil
			}
			return nil, err
		}

		if messageType == websocket.MessageBinary {
			return &voice.LiveFrame{Kind: voice.LiveAudio, Audio: payload}, nil
		}

		var ev serverEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("%w: malformed event: %v", voice.ErrProtocol, err)
		}

		switch ev.Type {
		case "transcript":
			role := voice.RoleUser
			if ev.Role == "assistant" {
				role = voice.RoleAssistant
			}
			return &voice.LiveFrame{
				Kind:  voice.LiveTranscript,
				Role:  role,
				Text:  ev.Text,
				Final: ev.Final,
			}, nil
		case "error":
			return &voice.LiveFrame{
				Kind: voice.LiveFailed,
				Err:  fmt.Errorf("%w: %s", voice.ErrProtocol, ev.Message),
			}, nil
		case "session.closed":
			return &voice.LiveFrame{Kind: voice.LiveClosed}, nil
		default:
			// Unknown event types are skipped so the protocol can grow.
			continue
		}
	}
}

func (c *conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
