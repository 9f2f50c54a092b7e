package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/habitus-ai/habitus-voice/pkg/voice"
)

// OpenAIChat streams completions straight from the OpenAI API, for running
// without the backend conversation service. Conversation identity stays
// client-side: the full history travels with every request and the passed
// id is echoed back unchanged.
type OpenAIChat struct {
	client       *openai.Client
	model        string
	instructions string
}

func NewOpenAIChat(apiKey string, model string, instructions string) *OpenAIChat {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIChat{
		client:       openai.NewClient(apiKey),
		model:        model,
		instructions: instructions,
	}
}

func (c *OpenAIChat) Name() string {
	return "openai-chat"
}

func (c *OpenAIChat) Stream(ctx context.Context, messages []voice.Message, conversationID string, onDelta func(string)) (*voice.ChatResult, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if c.instructions != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.instructions,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMessages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		onDelta(delta)
	}

	return &voice.ChatResult{Reply: reply.String(), ConversationID: conversationID}, nil
}
