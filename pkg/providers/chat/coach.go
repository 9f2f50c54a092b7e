package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/habitus-ai/habitus-voice/pkg/voice"
)

// CoachChat talks to the backend conversation service. The request carries
// the full message history plus the conversation correlation id; the reply
// body streams text deltas one per line, and the service's id for the
// conversation comes back out-of-band in a response header.
type CoachChat struct {
	apiKey string
	url    string
	client *http.Client
}

func NewCoachChat(apiKey string, url string) *CoachChat {
	return &CoachChat{
		apiKey: apiKey,
		url:    url,
		client: http.DefaultClient,
	}
}

func (c *CoachChat) Name() string {
	return "coach-chat"
}

func (c *CoachChat) Stream(ctx context.Context, messages []voice.Message, conversationID string, onDelta func(string)) (*voice.ChatResult, error) {
	payload := map[string]interface{}{
		"messages": messages,
	}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coach chat error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var delta struct {
			Text string `json:"text"`
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &delta); err != nil {
			return nil, fmt.Errorf("malformed delta line: %w", err)
		}
		reply.WriteString(delta.Text)
		onDelta(delta.Text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	result := &voice.ChatResult{Reply: reply.String()}
	if id := resp.Header.Get("X-Conversation-Id"); id != "" {
		result.ConversationID = id
	} else {
		result.ConversationID = conversationID
	}
	return result, nil
}
