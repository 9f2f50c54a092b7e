package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput is the production speaker backend. The oto player pulls PCM, so
// the stream bridges pushed writes through an internal buffer.
type OtoOutput struct{}

// NewOtoOutput creates the speaker backend.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{}
}

// Open creates an oto context at the requested format and returns a push
// stream over it.
func (b *OtoOutput) Open(format Format) (OutputStream, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms device buffer keeps latency low without glitching.
		BufferSize: 100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	return &otoStream{ctx: ctx}, nil
}

type otoStream struct {
	ctx    *oto.Context
	mu     sync.Mutex
	player *oto.Player
	buf    []byte
	closed bool
}

// Write queues PCM and starts the oto player on first data.
func (s *otoStream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("output stream closed")
	}

	s.buf = append(s.buf, p...)
	if s.player == nil {
		s.player = s.ctx.NewPlayer(s)
		s.player.Play()
	}
	return nil
}

// Read feeds the oto player. Silence is returned when the buffer is empty
// so the device keeps running between clips.
func (s *otoStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Flush discards queued audio so nothing more renders.
func (s *otoStream) Flush() error {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
	return nil
}

// Close stops the player and releases the device.
func (s *otoStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
