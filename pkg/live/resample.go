package live

import (
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"
)

// resampleSource wraps a capture source whose hardware rate differs from
// the 16 kHz the live stream expects. Samples are 16-bit signed
// little-endian mono on both sides.
type resampleSource struct {
	src CaptureSource
	rs  resampling.Resampler

	dstRate  int
	readBuf  []byte
	leftover []byte
}

func newResampleSource(src CaptureSource, dstRate int) (*resampleSource, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate()),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("live: create resampler: %w", err)
	}
	return &resampleSource{src: src, rs: rs, dstRate: dstRate}, nil
}

func (r *resampleSource) SampleRate() int { return r.dstRate }

func (r *resampleSource) Close() error { return r.src.Close() }

func (r *resampleSource) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/2*2]

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}

	// Over-read slightly so one source read usually fills one output
	// buffer after rate conversion.
	ratio := float64(r.src.SampleRate()) / float64(r.dstRate)
	need := (int(float64(len(p))*ratio) + 8) / 2 * 2
	if cap(r.readBuf) < need {
		r.readBuf = make([]byte, need)
	}

	n, readErr := r.src.Read(r.readBuf[:need])
	n = n / 2 * 2
	if n == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	input := make([]float64, n/2)
	for i := range input {
		s := int16(r.readBuf[i*2]) | int16(r.readBuf[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	output, err := r.rs.Process(input)
	if err != nil {
		return 0, fmt.Errorf("live: resample: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, v := range output {
		s := int16(v * 32767.0)
		if v > 1.0 {
			s = 32767
		} else if v < -1.0 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}

	wn := copy(p, out)
	if wn < len(out) {
		r.leftover = append(r.leftover, out[wn:]...)
	}
	return wn, readErr
}
