package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
)

// LiveController owns a persistent duplex session with the speech-to-speech
// collaborator. Outgoing mic chunks and inbound audio/transcript frames run
// on independent goroutines so neither direction blocks the other, while
// all state transitions funnel through one mutex. The remote side is
// authoritative for turn-taking: a reply starts when its frames arrive and
// the controller re-arms listening on its own once the reply finishes.
type LiveController struct {
	dialer LiveDialer
	rec    *audio.Recorder
	player *audio.Player
	cfg    Config
	logger Logger

	mic     *audio.Guard
	speaker *audio.Guard
	holder  string
	sink    HistorySink

	mu         sync.Mutex
	state      LiveState
	conn       LiveConn
	sessCancel context.CancelFunc
	epoch      uint64
	micOpen    bool
	history    []Message
	transcript string
	response   string
	lastErr    error
	closed     bool
	events     chan Event
}

// NewLiveController creates the duplex session controller with a no-op
// logger.
func NewLiveController(rec *audio.Recorder, player *audio.Player, dialer LiveDialer, cfg Config) *LiveController {
	return NewLiveControllerWithLogger(rec, player, dialer, cfg, &NoOpLogger{})
}

// NewLiveControllerWithLogger creates the controller with a custom logger.
func NewLiveControllerWithLogger(rec *audio.Recorder, player *audio.Player, dialer LiveDialer, cfg Config, logger Logger) *LiveController {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &LiveController{
		dialer: dialer,
		rec:    rec,
		player: player,
		cfg:    cfg,
		logger: logger,
		holder: "live:" + uuid.NewString(),
		state:  LiveDisconnected,
		events: make(chan Event, 256),
	}
}

// SetGuards wires the shared microphone and speaker guards.
func (c *LiveController) SetGuards(mic, speaker *audio.Guard) {
	c.mic = mic
	c.speaker = speaker
}

// SetHistorySink mirrors appended messages to the caller.
func (c *LiveController) SetHistorySink(sink HistorySink) {
	c.sink = sink
}

// Events returns the controller's event stream.
func (c *LiveController) Events() <-chan Event {
	return c.events
}

// State returns the current session state.
func (c *LiveController) State() LiveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the user's speech as understood by the remote side.
func (c *LiveController) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Response returns the assistant's reply text so far.
func (c *LiveController) Response() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// Err returns the last session error, nil outside the error state.
func (c *LiveController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// History returns a copy of the conversation so far.
func (c *LiveController) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Connect performs the handshake and enters idle. Valid from disconnected
// and error; a failed handshake returns to error and the caller retries
// explicitly — there is no automatic reconnect loop.
func (c *LiveController) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != LiveDisconnected && c.state != LiveError {
		c.mu.Unlock()
		return ErrBusy
	}
	// Make sure nothing from a previous session is still held.
	c.teardownLocked(LiveDisconnected, nil)

	if c.speaker != nil {
		if err := c.speaker.Acquire(c.holder); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	epoch := c.epoch
	c.lastErr = nil
	c.setStateLocked(LiveConnecting)
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	conn, err := c.dialer.Dial(dctx, LiveParams{
		Voice:        c.cfg.Voice,
		Instructions: c.cfg.Instructions,
		Format:       c.cfg.Format,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// Disconnected while dialing; abandon the connection.
		if conn != nil {
			conn.Close()
		}
		return ErrNotConnected
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrConnection, err)
		c.teardownLocked(LiveError, wrapped)
		return wrapped
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.sessCancel = sessCancel
	c.setStateLocked(LiveIdle)
	go c.recvLoop(sessCtx, conn, epoch)
	return nil
}

// StartListening opens the microphone and streams chunks to the session as
// they are produced. Capture keeps running through the assistant's reply so
// the collaborator can support barge-in.
func (c *LiveController) StartListening(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case LiveIdle, LiveResponding:
	default:
		if c.conn == nil {
			return ErrNotConnected
		}
		return ErrBusy
	}
	if c.micOpen {
		return nil
	}

	if c.mic != nil {
		if err := c.mic.Acquire(c.holder); err != nil {
			return err
		}
	}
	if err := c.rec.Start(ctx); err != nil {
		if c.mic != nil {
			c.mic.Release(c.holder)
		}
		return err
	}
	c.micOpen = true

	conn := c.conn
	epoch := c.epoch
	chunks := c.rec.Chunks()
	go c.forwardAudio(conn, epoch, chunks)

	if c.state == LiveIdle {
		c.setStateLocked(LiveListening)
	}
	return nil
}

// StopListening closes the microphone without ending the session. The
// remote side owns turn boundaries, so already-streamed audio stands.
func (c *LiveController) StopListening() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.micOpen {
		return
	}
	c.rec.Cancel()
	if c.mic != nil {
		c.mic.Release(c.holder)
	}
	c.micOpen = false
	if c.state == LiveListening {
		c.setStateLocked(LiveIdle)
	}
}

// SendText forwards an out-of-band text frame on the live channel.
func (c *LiveController) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendText(ctx, text)
}

// Disconnect tears everything down and resets to disconnected. Valid from
// any state; the connection, recording session, and playback are released
// together.
func (c *LiveController) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(LiveDisconnected, nil)
	c.transcript = ""
	c.response = ""
}

// Close disconnects and closes the event stream.
func (c *LiveController) Close() {
	c.Disconnect()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// teardownLocked is the single teardown path every exit calls: it aborts
// the session context, closes the connection, discards any open recording,
// stops playback, and releases both device guards. Caller holds c.mu.
func (c *LiveController) teardownLocked(final LiveState, err error) {
	c.epoch++
	if c.sessCancel != nil {
		c.sessCancel()
		c.sessCancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.rec.Cancel()
	c.player.Stop()
	if c.mic != nil {
		c.mic.Release(c.holder)
	}
	if c.speaker != nil {
		c.speaker.Release(c.holder)
	}
	c.micOpen = false
	c.lastErr = err
	if err != nil {
		c.emit(ErrorEvent, err.Error())
	}
	c.setStateLocked(final)
}

// forwardAudio streams captured chunks to the connection in capture order.
// It runs independently of the receive loop so inbound processing never
// delays outgoing audio.
func (c *LiveController) forwardAudio(conn LiveConn, epoch uint64, chunks <-chan []byte) {
	for chunk := range chunks {
		if err := conn.SendAudio(context.Background(), chunk); err != nil {
			c.mu.Lock()
			stale := c.epoch != epoch
			c.mu.Unlock()
			if !stale {
				c.logger.Warn("audio send failed", "error", err)
			}
			return
		}
	}
}

// recvLoop processes inbound frames in arrival order for one session.
func (c *LiveController) recvLoop(ctx context.Context, conn LiveConn, epoch uint64) {
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(epoch, fmt.Errorf("%w: %v", ErrConnection, err))
			return
		}

		switch frame.Kind {
		case LiveAudio:
			if err := c.player.Write(frame.Audio); err != nil {
				c.fail(epoch, fmt.Errorf("%w: %v", ErrPlayback, err))
				return
			}
			c.apply(epoch, func() {
				if c.state == LiveListening || c.state == LiveIdle {
					c.setStateLocked(LiveResponding)
				}
			})

		case LiveTranscript:
			c.handleTranscript(epoch, frame)

		case LiveClosed:
			if ctx.Err() != nil {
				return
			}
			c.fail(epoch, fmt.Errorf("%w: closed by remote", ErrConnection))
			return

		case LiveFailed:
			c.fail(epoch, frame.Err)
			return
		}
	}
}

// handleTranscript applies one transcript frame. Text is cumulative for a
// turn; an assistant-final frame marks the reply complete and re-arms
// listening without caller intervention.
func (c *LiveController) handleTranscript(epoch uint64, frame *LiveFrame) {
	c.apply(epoch, func() {
		switch frame.Role {
		case RoleAssistant:
			c.response = frame.Text
			if c.state == LiveListening || c.state == LiveIdle {
				c.setStateLocked(LiveResponding)
			}
			if frame.Final {
				c.emit(ResponseFinal, frame.Text)
				c.appendLocked(Message{Role: RoleAssistant, Content: frame.Text})
				c.transcript = ""
				c.response = ""
				if c.micOpen {
					c.setStateLocked(LiveListening)
				} else {
					c.setStateLocked(LiveIdle)
				}
			} else {
				c.emit(ResponseDelta, frame.Text)
			}
		default:
			c.transcript = frame.Text
			c.emit(TranscriptUpdated, frame.Text)
			if frame.Final {
				c.appendLocked(Message{Role: RoleUser, Content: frame.Text})
			}
		}
	})
}

// fail releases all session resources and parks the controller in the
// error state, keeping the message for the caller's retry decision.
func (c *LiveController) fail(epoch uint64, err error) {
	applied := c.apply(epoch, func() {
		c.logger.Error("live session failed", "error", err)
		c.teardownLocked(LiveError, err)
	})
	if !applied {
		c.logger.Debug("discarding late live failure", "error", err)
	}
}

// apply runs fn under the lock only if the session epoch is still current.
func (c *LiveController) apply(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.closed {
		return false
	}
	fn()
	return true
}

// appendLocked adds a message, trims to the configured bound, and mirrors
// it to the sink. Caller holds c.mu.
func (c *LiveController) appendLocked(msg Message) {
	c.history = append(c.history, msg)
	if max := c.cfg.MaxContextMessages; max > 0 && len(c.history) > max {
		c.history = c.history[len(c.history)-max:]
	}
	if c.sink != nil {
		c.sink.Append(msg)
	}
}

// setStateLocked transitions the state machine. Caller holds c.mu.
func (c *LiveController) setStateLocked(s LiveState) {
	if c.state == s {
		return
	}
	c.logger.Debug("live state", "from", string(c.state), "to", string(s))
	c.state = s
	c.emit(StateChanged, s)
}

// emit publishes an event without blocking. Caller holds c.mu.
func (c *LiveController) emit(eventType EventType, data interface{}) {
	if c.closed {
		return
	}
	select {
	case c.events <- Event{Type: eventType, Data: data}:
	default:
		c.logger.Warn("event dropped, slow consumer", "type", string(eventType))
	}
}
