package audio

import (
	"testing"
	"time"
)

func TestMalgoCaptureChunkInterval(t *testing.T) {
	b := NewMalgoCapture()
	defer b.Close()

	if b.ChunkInterval() != DefaultChunkInterval {
		t.Errorf("expected default interval %v, got %v", DefaultChunkInterval, b.ChunkInterval())
	}

	b.SetChunkInterval(40 * time.Millisecond)
	if b.ChunkInterval() != 40*time.Millisecond {
		t.Errorf("expected 40ms, got %v", b.ChunkInterval())
	}

	b.SetChunkInterval(0)
	if b.ChunkInterval() != 40*time.Millisecond {
		t.Errorf("expected a non-positive interval to be ignored, got %v", b.ChunkInterval())
	}
}
