package audio

import (
	"math"
	"sync"
)

// RMS computes the root-mean-square energy of a 16-bit little-endian PCM
// chunk, normalized to [0, 1].
func RMS(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}

	var sum float64
	for i := 0; i < len(chunk)-1; i += 2 {
		sample := int16(chunk[i]) | (int16(chunk[i+1]) << 8)
		f := float64(sample) / 32768.0
		sum += f * f
	}

	return math.Sqrt(sum / float64(len(chunk)/2))
}

// LevelMeter tracks the energy of the most recent capture chunk so callers
// can render a live microphone meter.
type LevelMeter struct {
	mu   sync.Mutex
	last float64
	peak float64
}

// Observe records a chunk and returns its RMS level.
func (m *LevelMeter) Observe(chunk []byte) float64 {
	level := RMS(chunk)
	m.mu.Lock()
	m.last = level
	if level > m.peak {
		m.peak = level
	}
	m.mu.Unlock()
	return level
}

// Level returns the RMS of the last observed chunk.
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Peak returns the highest level seen since the last Reset.
func (m *LevelMeter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Reset clears the meter.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.last = 0
	m.peak = 0
	m.mu.Unlock()
}
