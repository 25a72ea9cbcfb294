// Package wav reads and writes the canonical 44-byte-header RIFF/WAVE container
// used for every audio payload the service returns.
//
// Layout written by Encode:
//
//	"RIFF" <36+data_len LE32> "WAVE"
//	"fmt " <16 LE32> <1 LE16> <channels LE16> <sample_rate LE32>
//	       <byte_rate LE32> <block_align LE16> <bits_per_sample LE16>
//	"data" <data_len LE32> <pcm...>
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nadzzz/avatarvoice/internal/errs"
)

// HeaderSize is the size of the header produced by Encode.
const HeaderSize = 44

// Format describes linear PCM sample layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign is the number of bytes per frame (one sample for every channel).
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the number of payload bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Header is the information extracted from a parsed container.
type Header struct {
	Format
	AudioFormat int
	DataOffset  int
	DataLen     int
}

// Frames is the number of complete sample frames in the data chunk.
func (h Header) Frames() int {
	if h.BlockAlign() == 0 {
		return 0
	}
	return h.DataLen / h.BlockAlign()
}

// Duration is Frames / SampleRate in seconds.
func (h Header) Duration() float64 {
	if h.SampleRate == 0 {
		return 0
	}
	return float64(h.Frames()) / float64(h.SampleRate)
}

// Encode wraps raw PCM data in a WAV container.
func Encode(pcm []byte, f Format) []byte {
	dataLen := len(pcm)
	fileLen := 36 + dataLen // 44-byte header minus the 8 bytes of the RIFF chunk header

	buf := &bytes.Buffer{}
	buf.Grow(HeaderSize + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fileLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))              // subchunk1 size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))               // audio format (PCM)
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.Channels))      // channels
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.SampleRate))    // sample rate
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.ByteRate()))    // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.BlockAlign()))  // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.BitsPerSample)) // bits per sample

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseHeader walks the RIFF chunks of data and returns the fmt and data
// chunk information. Unknown chunks (LIST, fact, ...) are skipped. A data
// chunk whose declared size runs past the buffer is truncated to what is
// present, which is how streaming writers that never patch the size behave.
func ParseHeader(data []byte) (Header, error) {
	var h Header

	if len(data) < 12 {
		return h, malformed("container shorter than RIFF header (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return h, malformed("missing RIFF/WAVE signature")
	}

	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return h, malformed("fmt chunk too short (%d bytes)", size)
			}
			h.AudioFormat = int(binary.LittleEndian.Uint16(data[body : body+2]))
			h.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return h, malformed("data chunk before fmt chunk")
			}
			h.DataOffset = body
			h.DataLen = size
			if body+size > len(data) {
				h.DataLen = len(data) - body
			}
			if h.SampleRate <= 0 || h.BlockAlign() <= 0 {
				return h, malformed("invalid format: rate=%d channels=%d bits=%d",
					h.SampleRate, h.Channels, h.BitsPerSample)
			}
			return h, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}

	if !haveFmt {
		return h, malformed("missing fmt chunk")
	}
	return h, malformed("missing data chunk")
}

func malformed(format string, args ...any) error {
	return errs.New(errs.KindContainerParse, "wav.parse", fmt.Sprintf(format, args...))
}
