package pcm

import (
	"encoding/base64"
	"encoding/binary"
)

// DecodeSamples converts raw 16-bit little-endian PCM bytes into float
// samples normalized to [-1.0, 1.0) by dividing by 32768. The output has
// exactly len(b)/2 samples; a trailing odd byte is truncated rather than
// rejected so partial stream tails decode cleanly.
func DecodeSamples(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = float32(s) / 32768
	}
	return out
}

// EncodeSamples converts float samples into raw 16-bit little-endian PCM
// bytes. Each sample is clipped to [-1, 1], then scaled by 32768 when
// negative and 32767 otherwise (the asymmetric signed 16-bit range), with
// truncation toward zero.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// EncodeBase64 transcodes raw audio bytes to base64 text for the network
// boundary.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 transcodes base64 text back to raw audio bytes. It is the
// exact inverse of EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
