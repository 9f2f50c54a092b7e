package audio

import (
	"encoding/binary"
	"testing"
)

func pcmTone(samples int, amplitude int16) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

func TestRMSSilenceIsZero(t *testing.T) {
	if got := RMS(make([]byte, 320)); got != 0 {
		t.Errorf("expected 0 for silence, got %f", got)
	}
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for empty chunk, got %f", got)
	}
}

func TestRMSLouderIsHigher(t *testing.T) {
	quiet := RMS(pcmTone(160, 500))
	loud := RMS(pcmTone(160, 20000))

	if quiet <= 0 {
		t.Fatalf("expected positive RMS for quiet tone, got %f", quiet)
	}
	if loud <= quiet {
		t.Errorf("expected loud (%f) > quiet (%f)", loud, quiet)
	}
	if loud > 1 {
		t.Errorf("RMS should be normalized to [0,1], got %f", loud)
	}
}

func TestLevelMeterTracksPeak(t *testing.T) {
	var m LevelMeter

	m.Observe(pcmTone(160, 20000))
	m.Observe(pcmTone(160, 500))

	if m.Level() >= m.Peak() {
		t.Errorf("expected last level %f below peak %f", m.Level(), m.Peak())
	}

	m.Reset()
	if m.Level() != 0 || m.Peak() != 0 {
		t.Error("expected meter cleared after reset")
	}
}
