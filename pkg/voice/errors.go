package voice

import "errors"

// Pipeline error taxonomy. Stage failures are wrapped with %w so callers
// can discriminate with errors.Is while keeping the provider detail.
var (
	// ErrNoAudio is returned when a recording session captured zero bytes.
	ErrNoAudio = errors.New("no audio recorded")

	// ErrTranscription is returned when the speech-to-text stage fails.
	ErrTranscription = errors.New("speech-to-text transcription failed")

	// ErrChat is returned when the chat-completion stage fails.
	ErrChat = errors.New("chat completion failed")

	// ErrSynthesis is returned when the text-to-speech stage fails.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrPlayback is returned when rendering the synthesized clip fails.
	ErrPlayback = errors.New("audio playback failed")

	// ErrConnection is returned for live handshake failures and drops.
	ErrConnection = errors.New("live connection failed")

	// ErrProtocol is returned for malformed live-channel frames.
	ErrProtocol = errors.New("malformed live session frame")

	// ErrBusy is returned when a command is invalid in the current state.
	ErrBusy = errors.New("controller is busy in another state")

	// ErrNotConnected is returned for live commands before connect.
	ErrNotConnected = errors.New("live session not connected")
)
