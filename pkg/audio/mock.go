package audio

import (
	"sync"
)

// MockCapture implements CaptureBackend for tests without hardware. Chunks
// are fed in by the test via Feed.
type MockCapture struct {
	mu         sync.Mutex
	supported  bool
	startErr   error
	stopErr    error
	running    bool
	onChunk    func([]byte)
	startCount int
	stopCount  int
}

// NewMockCapture creates a supported mock backend.
func NewMockCapture() *MockCapture {
	return &MockCapture{supported: true}
}

// SetSupported controls the Supported probe.
func (m *MockCapture) SetSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supported = supported
}

// SetStartError makes the next Start fail with err.
func (m *MockCapture) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStopError makes Stop fail with err.
func (m *MockCapture) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

func (m *MockCapture) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

func (m *MockCapture) Start(format Format, onChunk func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	m.onChunk = onChunk
	m.startCount++
	return nil
}

func (m *MockCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.onChunk = nil
	m.stopCount++
	return m.stopErr
}

// Feed delivers a chunk as if the device produced it.
func (m *MockCapture) Feed(chunk []byte) {
	m.mu.Lock()
	onChunk := m.onChunk
	m.mu.Unlock()
	if onChunk != nil {
		onChunk(chunk)
	}
}

// Running reports whether the device is open.
func (m *MockCapture) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Counts returns how often the device was started and stopped.
func (m *MockCapture) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount, m.stopCount
}

// MockOutput implements OutputBackend for tests, recording everything
// written to it.
type MockOutput struct {
	mu      sync.Mutex
	openErr error
	streams []*MockOutputStream
}

// NewMockOutput creates a mock speaker backend.
func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

// SetOpenError makes Open fail with err.
func (m *MockOutput) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

func (m *MockOutput) Open(format Format) (OutputStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &MockOutputStream{}
	m.streams = append(m.streams, s)
	return s, nil
}

// Streams returns every stream opened on this backend.
func (m *MockOutput) Streams() []*MockOutputStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockOutputStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// MockOutputStream records written PCM and flush/close calls.
type MockOutputStream struct {
	mu       sync.Mutex
	written  []byte
	writeErr error
	flushes  int
	closed   bool
}

// SetWriteError makes Write fail with err.
func (s *MockOutputStream) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *MockOutputStream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, p...)
	return nil
}

func (s *MockOutputStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *MockOutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Written returns all PCM written so far.
func (s *MockOutputStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.written))
	copy(out, s.written)
	return out
}

// Flushes returns how many times the stream was flushed.
func (s *MockOutputStream) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Closed reports whether the stream was closed.
func (s *MockOutputStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
