package pcm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestDecodeSamples(t *testing.T) {
	in := []int16{0, 1, -1, 16384, -16384, 32767, -32768}
	raw := make([]byte, 2*len(in))
	for i, s := range in {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}

	got := DecodeSamples(raw)
	if len(got) != len(in) {
		t.Fatalf("got %d samples; want %d", len(got), len(in))
	}
	for i, s := range in {
		want := float32(s) / 32768
		if math.Abs(float64(got[i]-want)) > 1e-7 {
			t.Errorf("sample[%d] = %v; want %v", i, got[i], want)
		}
	}
}

func TestDecodeSamplesTruncatesOddByte(t *testing.T) {
	raw := []byte{0x00, 0x40, 0x7f} // one full sample plus a dangling byte
	got := DecodeSamples(raw)
	if len(got) != 1 {
		t.Fatalf("got %d samples; want 1", len(got))
	}
	if want := float32(0x4000) / 32768; got[0] != want {
		t.Errorf("sample[0] = %v; want %v", got[0], want)
	}
}

func TestEncodeSamples(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1.0, 32767},
		{"full negative", -1.0, -32768},
		{"clip positive", 1.5, 32767},
		{"clip negative", -2.0, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := EncodeSamples([]float32{tc.in})
			got := int16(binary.LittleEndian.Uint16(out))
			if got != tc.want {
				t.Errorf("EncodeSamples(%v) = %d; want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestBase64RoundTrip(t *testing.T) {
	bufs := [][]byte{
		nil,
		{0},
		{0x00, 0xff, 0x7f, 0x80},
		bytes.Repeat([]byte{0xab, 0xcd, 0xef}, 101),
	}
	for _, b := range bufs {
		got, err := DecodeBase64(EncodeBase64(b))
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if !bytes.Equal(got, b) {
			t.Errorf("round trip of %d bytes mismatched", len(b))
		}
	}
}

func TestFormatMath(t *testing.T) {
	if got := L16Mono16K.BytesInDuration(256 * time.Millisecond); got != 8192 {
		t.Errorf("BytesInDuration(256ms) = %d; want 8192", got)
	}
	if got := L16Mono24K.Duration(48000); got != time.Second {
		t.Errorf("Duration(48000 bytes @24k) = %v; want 1s", got)
	}
	if got := L16Mono24K.SamplesInDuration(time.Second / 2); got != 12000 {
		t.Errorf("SamplesInDuration(500ms) = %d; want 12000", got)
	}
}
