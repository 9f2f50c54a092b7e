package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clip is one complete synthesized audio clip with its declared MIME type.
type Clip struct {
	Data []byte
	MIME string
}

// OutputBackend abstracts the speaker device.
type OutputBackend interface {
	// Open prepares an output stream at the given format.
	Open(format Format) (OutputStream, error)
}

// OutputStream renders PCM pushed to it.
type OutputStream interface {
	// Write queues PCM for rendering. It must not block indefinitely.
	Write(p []byte) error

	// Flush discards any queued audio immediately.
	Flush() error

	// Close releases the device.
	Close() error
}

// DecodeClip converts a clip into raw PCM at the clip's native format.
// WAV payloads are unwrapped; raw PCM MIME types pass through at the
// fallback format.
func DecodeClip(clip *Clip, fallback Format) ([]byte, Format, error) {
	mime := strings.ToLower(clip.MIME)
	switch {
	case strings.Contains(mime, "wav"), strings.Contains(mime, "wave"):
		pcm, format, err := ParseWAV(clip.Data)
		if err != nil {
			return nil, Format{}, fmt.Errorf("%w: %v", ErrUnsupportedClip, err)
		}
		return pcm, format, nil
	case mime == "", strings.Contains(mime, "l16"), strings.Contains(mime, "pcm"), strings.Contains(mime, "octet-stream"):
		return clip.Data, fallback, nil
	default:
		return nil, Format{}, fmt.Errorf("%w: %q", ErrUnsupportedClip, clip.MIME)
	}
}

// Player owns the output device. One clip or stream renders at a time;
// starting a new one implicitly stops the previous one. Completion is
// estimated from the PCM duration, the same approach hardware pipelines use
// when the device buffer depth is opaque.
type Player struct {
	backend OutputBackend
	format  Format

	mu      sync.Mutex
	stream  OutputStream
	playing bool
	done    chan struct{}
	doneAt  time.Time
	timer   *time.Timer
	closed  bool
	playSeq uint64
}

// NewPlayer creates a player over the given backend.
func NewPlayer(backend OutputBackend, format Format) *Player {
	return &Player{backend: backend, format: format}
}

// Format returns the playback PCM format.
func (p *Player) Format() Format {
	return p.format
}

// ensureStream opens the device lazily. Caller holds p.mu.
func (p *Player) ensureStream() error {
	if p.closed {
		return fmt.Errorf("player closed")
	}
	if p.stream != nil {
		return nil
	}
	stream, err := p.backend.Open(p.format)
	if err != nil {
		return deviceErr("playback open", err)
	}
	p.stream = stream
	return nil
}

// PlayClip decodes and renders a complete clip, replacing any current
// playback. The returned channel closes when rendering is estimated
// complete or the clip is stopped.
func (p *Player) PlayClip(clip *Clip) (<-chan struct{}, error) {
	pcm, clipFormat, err := DecodeClip(clip, p.format)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	if err := p.ensureStream(); err != nil {
		return nil, err
	}
	if err := p.stream.Write(pcm); err != nil {
		return nil, deviceErr("playback write", err)
	}

	done := make(chan struct{})
	p.playing = true
	p.done = done
	p.doneAt = time.Now().Add(clipFormat.Duration(len(pcm)))
	p.armTimerLocked()

	return done, nil
}

// Write renders a live chunk in streaming mode, extending the playing
// window by the chunk's duration.
func (p *Player) Write(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStream(); err != nil {
		return err
	}
	if err := p.stream.Write(chunk); err != nil {
		return deviceErr("playback write", err)
	}

	now := time.Now()
	if !p.playing {
		p.playing = true
		p.done = make(chan struct{})
		p.doneAt = now
	}
	if p.doneAt.Before(now) {
		p.doneAt = now
	}
	p.doneAt = p.doneAt.Add(p.format.Duration(len(chunk)))
	p.armTimerLocked()
	return nil
}

// armTimerLocked schedules the completion signal for doneAt. Caller holds
// p.mu.
func (p *Player) armTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	seq := p.playSeq
	delay := time.Until(p.doneAt)
	p.timer = time.AfterFunc(delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.playSeq != seq || !p.playing {
			return
		}
		if time.Now().Before(p.doneAt) {
			return
		}
		p.finishLocked()
	})
}

// finishLocked marks playback complete. Caller holds p.mu.
func (p *Player) finishLocked() {
	p.playing = false
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

// Playing reports whether a clip or stream is currently rendering.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Stop halts playback immediately and discards queued audio. Safe to call
// when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// stopLocked cancels the timer, flushes the device, and releases waiters.
// Caller holds p.mu.
func (p *Player) stopLocked() {
	p.playSeq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.stream != nil {
		p.stream.Flush()
	}
	if p.playing {
		p.finishLocked()
	}
}

// Close stops playback and releases the output device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
	if p.stream != nil {
		err := p.stream.Close()
		p.stream = nil
		return err
	}
	return nil
}
