package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// DefaultChunkInterval is the capture period used when none is configured.
const DefaultChunkInterval = 100 * time.Millisecond

// MalgoCapture is the production microphone backend built on miniaudio.
type MalgoCapture struct {
	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	interval time.Duration
}

// NewMalgoCapture probes the host audio stack. A probe failure leaves the
// backend unsupported rather than erroring per call.
func NewMalgoCapture() *MalgoCapture {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return &MalgoCapture{interval: DefaultChunkInterval}
	}
	return &MalgoCapture{ctx: ctx, interval: DefaultChunkInterval}
}

// SetChunkInterval sets the capture period for subsequent Start calls.
// Non-positive values keep the default.
func (b *MalgoCapture) SetChunkInterval(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > 0 {
		b.interval = d
	}
}

// ChunkInterval returns the configured capture period.
func (b *MalgoCapture) ChunkInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Supported reports whether the host audio stack initialized.
func (b *MalgoCapture) Supported() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx != nil
}

// Start opens the default capture device delivering PCM chunks at the
// configured interval.
func (b *MalgoCapture) Start(format Format, onChunk func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return fmt.Errorf("no audio backend available")
	}
	if b.device != nil {
		return fmt.Errorf("capture device already open")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(b.interval / time.Millisecond)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			if pInput != nil {
				onChunk(pInput)
			}
		},
	})
	if err != nil {
		return err
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return err
	}

	b.device = device
	return nil
}

// Stop closes the capture device.
func (b *MalgoCapture) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return nil
	}
	b.device.Stop()
	b.device.Uninit()
	b.device = nil
	return nil
}

// Close tears down the audio context.
func (b *MalgoCapture) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Stop()
		b.device.Uninit()
		b.device = nil
	}
	if b.ctx != nil {
		b.ctx.Uninit()
		b.ctx.Free()
		b.ctx = nil
	}
}
