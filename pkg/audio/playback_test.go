package audio

import (
	"errors"
	"testing"
	"time"
)

func TestPlayerPlayClipCompletes(t *testing.T) {
	backend := NewMockOutput()
	format := DefaultFormat()
	player := NewPlayer(backend, format)
	defer player.Close()

	// 50ms of audio.
	pcm := make([]byte, format.ChunkSize(50*time.Millisecond))
	done, err := player.PlayClip(&Clip{Data: NewWAV(pcm, format), MIME: "audio/wav"})
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !player.Playing() {
		t.Error("expected playing signal during playback")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never completed")
	}
	if player.Playing() {
		t.Error("expected playing false after completion")
	}

	streams := backend.Streams()
	if len(streams) != 1 {
		t.Fatalf("expected one output stream, got %d", len(streams))
	}
	if len(streams[0].Written()) != len(pcm) {
		t.Errorf("expected %d bytes written, got %d", len(pcm), len(streams[0].Written()))
	}
}

func TestPlayerRawPCMClip(t *testing.T) {
	player := NewPlayer(NewMockOutput(), DefaultFormat())
	defer player.Close()

	if _, err := player.PlayClip(&Clip{Data: make([]byte, 320), MIME: "audio/l16"}); err != nil {
		t.Errorf("raw PCM clip should play: %v", err)
	}
}

func TestPlayerRejectsUnknownMIME(t *testing.T) {
	player := NewPlayer(NewMockOutput(), DefaultFormat())
	defer player.Close()

	_, err := player.PlayClip(&Clip{Data: []byte{1, 2, 3}, MIME: "audio/mpeg"})
	if !errors.Is(err, ErrUnsupportedClip) {
		t.Errorf("expected ErrUnsupportedClip, got %v", err)
	}
	if player.Playing() {
		t.Error("decode failure must not leave player in playing state")
	}
}

func TestPlayerNewClipReplacesCurrent(t *testing.T) {
	backend := NewMockOutput()
	format := DefaultFormat()
	player := NewPlayer(backend, format)
	defer player.Close()

	long := make([]byte, format.ChunkSize(5*time.Second))
	first, err := player.PlayClip(&Clip{Data: long, MIME: "audio/l16"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := player.PlayClip(&Clip{Data: make([]byte, 320), MIME: "audio/l16"}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first clip's done channel should close when replaced")
	}

	if backend.Streams()[0].Flushes() == 0 {
		t.Error("expected queued audio flushed when replaced")
	}
}

func TestPlayerStopSafeWhenIdle(t *testing.T) {
	player := NewPlayer(NewMockOutput(), DefaultFormat())
	defer player.Close()

	player.Stop()
	player.Stop()
	if player.Playing() {
		t.Error("idle player should not report playing")
	}
}

func TestPlayerStopHaltsPlayback(t *testing.T) {
	backend := NewMockOutput()
	format := DefaultFormat()
	player := NewPlayer(backend, format)
	defer player.Close()

	long := make([]byte, format.ChunkSize(5*time.Second))
	done, err := player.PlayClip(&Clip{Data: long, MIME: "audio/l16"})
	if err != nil {
		t.Fatal(err)
	}

	player.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done channel should close on stop")
	}
	if player.Playing() {
		t.Error("expected playing false after stop")
	}
}

func TestPlayerStreamingWriteExtendsWindow(t *testing.T) {
	backend := NewMockOutput()
	format := DefaultFormat()
	player := NewPlayer(backend, format)
	defer player.Close()

	chunk := make([]byte, format.ChunkSize(30*time.Millisecond))
	for i := 0; i < 3; i++ {
		if err := player.Write(chunk); err != nil {
			t.Fatalf("stream write failed: %v", err)
		}
	}
	if !player.Playing() {
		t.Error("expected playing during streaming")
	}

	deadline := time.Now().Add(2 * time.Second)
	for player.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("streaming playback never drained")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlayerOpenFailureIsDeviceError(t *testing.T) {
	backend := NewMockOutput()
	backend.SetOpenError(errors.New("no device found"))
	player := NewPlayer(backend, DefaultFormat())

	_, err := player.PlayClip(&Clip{Data: make([]byte, 32), MIME: "audio/l16"})
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected *DeviceError, got %v", err)
	}
	if devErr.Kind != DeviceNotFound {
		t.Errorf("expected not-found kind, got %v", devErr.Kind)
	}
}
