package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

// TurnController runs the push-to-talk pipeline: record, transcribe, chat,
// synthesize, play, one round-trip at a time. All state transitions funnel
// through one mutex, and every turn carries an epoch so results arriving
// after a cancel are discarded instead of applied.
type TurnController struct {
	stt    Transcriber
	chat   ChatStreamer
	tts    Synthesizer
	rec    *audio.Recorder
	player *audio.Player
	cfg    Config
	logger Logger

	mic     *audio.Guard
	speaker *audio.Guard
	holder  string
	sink    HistorySink

	mu             sync.Mutex
	state          VoiceState
	history        []Message
	transcript     string
	response       string
	lastErr        error
	conversationID string
	epoch          uint64
	turnCancel     context.CancelFunc
	closed         bool
	events         chan Event
}

// NewTurnController creates the push-to-talk controller with a no-op logger.
func NewTurnController(rec *audio.Recorder, player *audio.Player, stt Transcriber, chat ChatStreamer, tts Synthesizer, cfg Config) *TurnController {
	return NewTurnControllerWithLogger(rec, player, stt, chat, tts, cfg, &NoOpLogger{})
}

// NewTurnControllerWithLogger creates the controller with a custom logger.
func NewTurnControllerWithLogger(rec *audio.Recorder, player *audio.Player, stt Transcriber, chat ChatStreamer, tts Synthesizer, cfg Config, logger Logger) *TurnController {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TurnController{
		stt:    stt,
		chat:   chat,
		tts:    tts,
		rec:    rec,
		player: player,
		cfg:    cfg,
		logger: logger,
		holder: "turn:" + uuid.NewString(),
		state:  StateIdle,
		events: make(chan Event, 256),
	}
}

// SetGuards wires the shared microphone and speaker guards. Nil guards
// disable exclusivity checks.
func (c *TurnController) SetGuards(mic, speaker *audio.Guard) {
	c.mic = mic
	c.speaker = speaker
}

// SetHistorySink mirrors appended messages to the caller.
func (c *TurnController) SetHistorySink(sink HistorySink) {
	c.sink = sink
}

// Events returns the controller's event stream.
func (c *TurnController) Events() <-chan Event {
	return c.events
}

// State returns the current pipeline state.
func (c *TurnController) State() VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the user text from the current or last turn.
func (c *TurnController) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Response returns the assistant text streamed so far.
func (c *TurnController) Response() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// Err returns the last pipeline error, nil outside the error state.
func (c *TurnController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ConversationID returns the correlation id for the chat collaborator,
// empty before the first completed turn.
func (c *TurnController) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// History returns a copy of the conversation so far.
func (c *TurnController) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// StartListening opens a recording session. Valid from idle and error; the
// error state is cleared so the user can retry.
func (c *TurnController) StartListening(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateError {
		return ErrBusy
	}

	if c.mic != nil {
		if err := c.mic.Acquire(c.holder); err != nil {
			return err
		}
	}
	if err := c.rec.Start(ctx); err != nil {
		c.releaseMicLocked()
		c.lastErr = err
		c.setStateLocked(StateError)
		c.emit(ErrorEvent, err.Error())
		return err
	}

	c.lastErr = nil
	c.transcript = ""
	c.response = ""
	c.setStateLocked(StateListening)
	return nil
}

// StopListening closes the recording session into an utterance and starts
// the processing pipeline.
func (c *TurnController) StopListening() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateListening {
		return ErrBusy
	}

	utt, err := c.rec.Stop()
	c.releaseMicLocked()
	if err != nil {
		c.lastErr = err
		c.setStateLocked(StateError)
		c.emit(ErrorEvent, err.Error())
		return err
	}
	if utt == nil {
		c.lastErr = ErrNoAudio
		c.setStateLocked(StateError)
		c.emit(ErrorEvent, ErrNoAudio.Error())
		return ErrNoAudio
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.turnCancel = cancel
	c.setStateLocked(StateProcessing)
	go c.runTurn(ctx, cancel, c.epoch, utt)
	return nil
}

// CancelConversation aborts whatever is in flight and returns to idle with
// transcript, response, and error cleared. Valid from any state; the four
// teardown effects are atomic from the caller's perspective.
func (c *TurnController) CancelConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Anything still running for the old epoch becomes inert.
	c.epoch++
	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
	}

	c.rec.Cancel()
	c.player.Stop()
	c.releaseMicLocked()
	c.releaseSpeakerLocked()

	c.transcript = ""
	c.response = ""
	c.lastErr = nil
	c.setStateLocked(StateIdle)
}

// Close cancels the controller and closes its event stream.
func (c *TurnController) Close() {
	c.CancelConversation()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// runTurn executes transcribe, chat, synthesize, play strictly in order.
// Each stage checks the epoch before mutating state, so a cancel between
// stages makes the rest of the turn a no-op.
func (c *TurnController) runTurn(ctx context.Context, cancel context.CancelFunc, epoch uint64, utt *audio.Utterance) {
	defer cancel()

	transcript, err := c.transcribe(ctx, utt)
	if err != nil {
		c.failTurn(epoch, fmt.Errorf("%w: %v", ErrTranscription, err))
		return
	}
	if strings.TrimSpace(transcript) == "" {
		// Unintelligible audio is benign: back to idle, no error.
		c.logger.Warn("empty transcription", "utterance", utt.ID)
		c.apply(epoch, func() {
			c.turnCancel = nil
			c.setStateLocked(StateIdle)
		})
		return
	}

	var messages []Message
	var conversationID string
	ok := c.apply(epoch, func() {
		c.transcript = transcript
		c.emit(TranscriptUpdated, transcript)
		// The user's turn is recorded before chat responds so a
		// cancelled chat call cannot lose it.
		c.appendLocked(Message{Role: RoleUser, Content: transcript})
		messages = make([]Message, len(c.history))
		copy(messages, c.history)
		conversationID = c.conversationID
	})
	if !ok {
		return
	}

	result, err := c.streamChat(ctx, epoch, messages, conversationID)
	if err != nil {
		c.failTurn(epoch, fmt.Errorf("%w: %v", ErrChat, err))
		return
	}

	ok = c.apply(epoch, func() {
		c.response = result.Reply
		c.emit(ResponseFinal, result.Reply)
		if result.ConversationID != "" && result.ConversationID != c.conversationID {
			c.conversationID = result.ConversationID
			c.emit(ConversationAdopted, result.ConversationID)
		}
		c.appendLocked(Message{Role: RoleAssistant, Content: result.Reply})
	})
	if !ok {
		return
	}

	// Synthesis waits for stream completion above: only the final
	// aggregated reply is ever spoken.
	clip, err := c.synthesize(ctx, result.Reply)
	if err != nil {
		c.failTurn(epoch, fmt.Errorf("%w: %v", ErrSynthesis, err))
		return
	}

	var done <-chan struct{}
	ok = c.apply(epoch, func() {
		if c.speaker != nil {
			if err = c.speaker.Acquire(c.holder); err != nil {
				return
			}
		}
		done, err = c.player.PlayClip(clip)
		if err != nil {
			c.releaseSpeakerLocked()
			return
		}
		c.setStateLocked(StateSpeaking)
	})
	if !ok {
		return
	}
	if err != nil {
		c.failTurn(epoch, fmt.Errorf("%w: %v", ErrPlayback, err))
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
		return
	}

	// Short settle delay before re-arming so playback tail noise does not
	// immediately trigger another listen.
	settle := time.NewTimer(c.cfg.SettleDelay)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-ctx.Done():
		return
	}

	c.apply(epoch, func() {
		c.releaseSpeakerLocked()
		c.transcript = ""
		c.response = ""
		c.turnCancel = nil
		c.setStateLocked(StateIdle)
	})
}

func (c *TurnController) transcribe(ctx context.Context, utt *audio.Utterance) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, c.cfg.STTTimeout)
	defer cancel()
	return c.stt.Transcribe(sctx, utt)
}

func (c *TurnController) streamChat(ctx context.Context, epoch uint64, messages []Message, conversationID string) (*ChatResult, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)
	defer cancel()
	return c.chat.Stream(cctx, messages, conversationID, func(delta string) {
		c.apply(epoch, func() {
			c.response += delta
			c.emit(ResponseDelta, delta)
		})
	})
}

func (c *TurnController) synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	tctx, cancel := context.WithTimeout(ctx, c.cfg.TTSTimeout)
	defer cancel()
	return c.tts.Synthesize(tctx, text, c.cfg.Voice)
}

// failTurn transitions to the error state, keeping any partial transcript
// or response for display.
func (c *TurnController) failTurn(epoch uint64, err error) {
	applied := c.apply(epoch, func() {
		c.logger.Error("turn failed", "error", err)
		c.releaseSpeakerLocked()
		c.lastErr = err
		c.turnCancel = nil
		c.setStateLocked(StateError)
		c.emit(ErrorEvent, err.Error())
	})
	if !applied {
		c.logger.Debug("discarding late turn failure", "error", err)
	}
}

// apply runs fn under the lock only if the turn's epoch is still current.
// Late results from cancelled turns are discarded here.
func (c *TurnController) apply(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.closed {
		return false
	}
	fn()
	return true
}

// appendLocked adds a message, trims history to the configured bound, and
// mirrors it to the sink. Caller holds c.mu.
func (c *TurnController) appendLocked(msg Message) {
	c.history = append(c.history, msg)
	if max := c.cfg.MaxContextMessages; max > 0 && len(c.history) > max {
		c.history = c.history[len(c.history)-max:]
	}
	if c.sink != nil {
		c.sink.Append(msg)
	}
}

// setStateLocked transitions the state machine. Caller holds c.mu.
func (c *TurnController) setStateLocked(s VoiceState) {
	if c.state == s {
		return
	}
	c.logger.Debug("voice state", "from", string(c.state), "to", string(s))
	c.state = s
	c.emit(StateChanged, s)
}

func (c *TurnController) releaseMicLocked() {
	if c.mic != nil {
		c.mic.Release(c.holder)
	}
}

func (c *TurnController) releaseSpeakerLocked() {
	if c.speaker != nil {
		c.speaker.Release(c.holder)
	}
}

// emit publishes an event without ever blocking a state transition. Caller
// holds c.mu.
func (c *TurnController) emit(eventType EventType, data interface{}) {
	if c.closed {
		return
	}
	select {
	case c.events <- Event{Type: eventType, Data: data}:
	default:
		c.logger.Warn("event dropped, slow consumer", "type", string(eventType))
	}
}
