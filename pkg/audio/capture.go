package audio

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CaptureBackend abstracts the microphone device so recording logic can be
// tested without hardware.
type CaptureBackend interface {
	// Supported reports whether a capture device can be opened at all.
	// Probed once at startup; an unsupported backend hides the capability
	// instead of failing per call.
	Supported() bool

	// Start opens the device and begins delivering PCM chunks to onChunk
	// from the device thread.
	Start(format Format, onChunk func([]byte)) error

	// Stop closes the device and releases it.
	Stop() error
}

// Utterance is one finalized capture of user speech.
type Utterance struct {
	ID       string
	PCM      []byte
	Format   Format
	Duration time.Duration
}

// WAV returns the utterance encoded as a WAV buffer.
func (u *Utterance) WAV() []byte {
	return NewWAV(u.PCM, u.Format)
}

// Recorder owns a capture backend and turns device callbacks into buffered
// recording sessions. The device is opened by Start and released exactly
// once per Stop or Cancel, on every exit path.
type Recorder struct {
	backend CaptureBackend
	format  Format
	meter   LevelMeter

	mu      sync.Mutex
	active  bool
	session string
	started time.Time
	buf     bytes.Buffer
	chunks  chan []byte
}

// NewRecorder creates a recorder over the given backend.
func NewRecorder(backend CaptureBackend, format Format) *Recorder {
	return &Recorder{backend: backend, format: format}
}

// Supported reports whether capture is available on this host.
func (r *Recorder) Supported() bool {
	return r.backend.Supported()
}

// Format returns the capture PCM format.
func (r *Recorder) Format() Format {
	return r.format
}

// Start opens the microphone and begins buffering chunks. It fails with a
// *DeviceError when the device cannot be acquired.
func (r *Recorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return ErrDeviceBusy
	}
	session := uuid.NewString()
	r.active = true
	r.session = session
	r.started = time.Now()
	r.buf.Reset()
	r.meter.Reset()
	chunks := make(chan []byte, 64)
	r.chunks = chunks
	r.mu.Unlock()

	err := r.backend.Start(r.format, func(chunk []byte) {
		r.mu.Lock()
		if !r.active || r.session != session {
			r.mu.Unlock()
			return
		}
		data := make([]byte, len(chunk))
		copy(data, chunk)
		r.buf.Write(data)
		// Send under the lock so Stop/Cancel cannot close the channel
		// between the session check and the send. Never block the device
		// thread; a slow consumer drops the streamed copy but keeps the
		// buffered recording intact.
		select {
		case chunks <- data:
		default:
		}
		r.mu.Unlock()

		r.meter.Observe(data)
	})
	if err != nil {
		r.mu.Lock()
		r.active = false
		r.chunks = nil
		r.mu.Unlock()
		close(chunks)
		return deviceErr("capture start", err)
	}

	return nil
}

// Chunks returns the live chunk stream for the current session, nil when no
// session is active. The channel is closed by Stop or Cancel.
func (r *Recorder) Chunks() <-chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks
}

// Elapsed returns how long the current session has been recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return time.Since(r.started)
}

// Level returns the RMS energy of the most recent chunk.
func (r *Recorder) Level() float64 {
	return r.meter.Level()
}

// Recording reports whether a session is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Stop finalizes the session into an Utterance and releases the device.
// A session that captured zero bytes returns (nil, nil): a valid empty
// result, not an error.
func (r *Recorder) Stop() (*Utterance, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.active = false
	session := r.session
	started := r.started
	pcm := make([]byte, r.buf.Len())
	copy(pcm, r.buf.Bytes())
	r.buf.Reset()
	chunks := r.chunks
	r.chunks = nil
	r.mu.Unlock()

	stopErr := r.backend.Stop()
	close(chunks)

	if stopErr != nil {
		return nil, deviceErr("capture stop", stopErr)
	}
	if len(pcm) == 0 {
		return nil, nil
	}

	return &Utterance{
		ID:       session,
		PCM:      pcm,
		Format:   r.format,
		Duration: time.Since(started),
	}, nil
}

// Cancel discards any buffered audio and releases the device without
// producing an Utterance. Safe to call from any state.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	r.buf.Reset()
	chunks := r.chunks
	r.chunks = nil
	r.mu.Unlock()

	r.backend.Stop()
	close(chunks)
}
