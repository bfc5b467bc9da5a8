// Package wav muxes raw mono 16-bit PCM into a self-contained WAV
// container and extracts the payload back out. The header is the canonical
// 44-byte RIFF/WAVE linear-PCM layout; the payload is carried unmodified.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of the canonical linear-PCM WAV header.
const HeaderSize = 44

// ErrMalformed is returned when a buffer does not parse as a linear-PCM
// WAV file produced by Encode.
var ErrMalformed = errors.New("wav: malformed container")

// Encode wraps raw 16-bit mono little-endian PCM bytes in a WAV container
// at the given sample rate. The payload is appended to the header byte for
// byte, unmodified.
func Encode(pcmData []byte, sampleRate int) []byte {
	dataLen := len(pcmData)
	byteRate := sampleRate * 2

	out := make([]byte, HeaderSize, HeaderSize+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // linear PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))

	return append(out, pcmData...)
}

// Data extracts the raw PCM payload from a container produced by Encode.
func Data(b []byte) ([]byte, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformed, len(b), HeaderSize)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[36:40]) != "data" {
		return nil, ErrMalformed
	}
	n := int(binary.LittleEndian.Uint32(b[40:44]))
	if len(b) < HeaderSize+n {
		return nil, fmt.Errorf("%w: data length %d exceeds payload %d", ErrMalformed, n, len(b)-HeaderSize)
	}
	return b[HeaderSize : HeaderSize+n], nil
}

// SampleRate reads the sample rate field from a container header.
func SampleRate(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, ErrMalformed
	}
	return int(binary.LittleEndian.Uint32(b[24:28])), nil
}
