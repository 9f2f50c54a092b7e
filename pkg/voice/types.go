package voice

import (
	"context"
	"time"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Message is one entry in the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// VoiceState is the push-to-talk controller state.
type VoiceState string

const (
	StateIdle       VoiceState = "idle"
	StateListening  VoiceState = "listening"
	StateProcessing VoiceState = "processing"
	StateSpeaking   VoiceState = "speaking"
	StateError      VoiceState = "error"
)

// LiveState is the duplex session controller state. It is distinct from
// VoiceState because the live transport has its own connection lifecycle.
type LiveState string

const (
	LiveDisconnected LiveState = "disconnected"
	LiveConnecting   LiveState = "connecting"
	LiveIdle         LiveState = "idle"
	LiveListening    LiveState = "listening"
	LiveResponding   LiveState = "responding"
	LiveError        LiveState = "error"
)

// EventType identifies controller events published to the caller.
type EventType string

const (
	StateChanged        EventType = "STATE_CHANGED"
	TranscriptUpdated   EventType = "TRANSCRIPT_UPDATED"
	ResponseDelta       EventType = "RESPONSE_DELTA"
	ResponseFinal       EventType = "RESPONSE_FINAL"
	ConversationAdopted EventType = "CONVERSATION_ADOPTED"
	ErrorEvent          EventType = "ERROR"
)

// Event carries one controller notification. Data depends on the type:
// the new state for StateChanged, text for transcript/response events, the
// adopted id for ConversationAdopted, an error string for ErrorEvent.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// HistorySink optionally mirrors appended messages out to the caller, for
// persistence outside the controller.
type HistorySink interface {
	Append(msg Message)
}

// Transcriber converts one finished utterance to text. Empty or
// unintelligible audio yields an empty string, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) (string, error)
	Name() string
}

// ChatResult is the outcome of one streamed chat completion.
type ChatResult struct {
	Reply          string
	ConversationID string
}

// ChatStreamer sends conversation history to the chat collaborator and
// streams the reply. onDelta is invoked for each text fragment as it
// arrives; the returned result carries the final aggregated reply and the
// conversation correlation id.
type ChatStreamer interface {
	Stream(ctx context.Context, messages []Message, conversationID string, onDelta func(delta string)) (*ChatResult, error)
	Name() string
}

// Synthesizer converts text to one audio clip with a declared MIME type.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*audio.Clip, error)
	Name() string
}

// LiveEventKind classifies inbound frames on a live session.
type LiveEventKind int

const (
	// LiveReady signals handshake completion.
	LiveReady LiveEventKind = iota

	// LiveAudio carries synthesized audio to play immediately.
	LiveAudio

	// LiveTranscript carries partial or final text for either party.
	LiveTranscript

	// LiveClosed signals an orderly remote close.
	LiveClosed

	// LiveFailed signals a connection or protocol error.
	LiveFailed
)

// LiveFrame is one inbound event from the live collaborator.
type LiveFrame struct {
	Kind  LiveEventKind
	Audio []byte
	Role  string
	Text  string
	Final bool
	Err   error
}

// LiveParams is negotiated once at connect time.
type LiveParams struct {
	Voice        string
	Instructions string
	Format       audio.Format
}

// LiveConn is an established duplex channel. Sends and receives are
// independent so inbound processing never blocks outgoing audio.
type LiveConn interface {
	// SendAudio forwards one binary mic frame.
	SendAudio(ctx context.Context, chunk []byte) error

	// SendText forwards an out-of-band text frame.
	SendText(ctx context.Context, text string) error

	// Receive blocks for the next inbound frame. A dropped connection
	// surfaces as a LiveFailed frame or an error.
	Receive(ctx context.Context) (*LiveFrame, error)

	// Close tears the connection down.
	Close() error
}

// LiveDialer opens live sessions. Dial performs the full handshake,
// including the setup exchange, and returns a ready connection.
type LiveDialer interface {
	Dial(ctx context.Context, params LiveParams) (LiveConn, error)
	Name() string
}

// Config tunes both controllers.
type Config struct {
	Format             audio.Format
	ChunkInterval      time.Duration
	SettleDelay        time.Duration
	ConnectTimeout     time.Duration
	STTTimeout         time.Duration
	ChatTimeout        time.Duration
	TTSTimeout         time.Duration
	Voice              string
	Instructions       string
	MaxContextMessages int
}

func DefaultConfig() Config {
	return Config{
		Format:             audio.DefaultFormat(),
		ChunkInterval:      100 * time.Millisecond,
		SettleDelay:        500 * time.Millisecond,
		ConnectTimeout:     10 * time.Second,
		STTTimeout:         30 * time.Second,
		ChatTimeout:        60 * time.Second,
		TTSTimeout:         30 * time.Second,
		Voice:              "coach-f1",
		MaxContextMessages: 40,
	}
}
