package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NewWAV wraps raw 16-bit PCM in a RIFF/WAVE header.
func NewWAV(pcm []byte, format Format) []byte {
	buf := new(bytes.Buffer)

	byteRate := format.BytesPerSecond()
	blockAlign := format.Channels * 2

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseWAV extracts the PCM payload and format from a RIFF/WAVE buffer.
// Only uncompressed 16-bit PCM is accepted.
func ParseWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("not a RIFF/WAVE buffer")
	}

	var format Format
	var haveFmt bool

	// Walk the chunk list; fmt must precede data.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("truncated fmt chunk")
			}
			codec := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if codec != 1 || bits != 16 {
				return nil, Format{}, fmt.Errorf("unsupported wav encoding (codec=%d bits=%d)", codec, bits)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("wav data chunk before fmt chunk")
			}
			return data[body : body+size], format, nil
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	return nil, Format{}, fmt.Errorf("wav buffer has no data chunk")
}
