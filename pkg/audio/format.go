package audio

import "time"

// Format describes raw 16-bit little-endian PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 16kHz mono, the rate speech services expect.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1}
}

// BytesPerSecond returns the PCM byte rate for this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns how long n bytes of PCM last at this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// ChunkSize returns the PCM byte count covering the given interval.
func (f Format) ChunkSize(interval time.Duration) int {
	return int(int64(f.BytesPerSecond()) * int64(interval) / int64(time.Second))
}
