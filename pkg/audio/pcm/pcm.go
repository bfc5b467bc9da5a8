package pcm

import "time"

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1.
	// Capture-side format for live sessions.
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1.
	// Synthesis output format.
	L16Mono24K
)

// Format represents a raw PCM audio format configuration.
// All formats are mono, 16-bit signed little-endian.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	}
	panic("pcm: invalid audio format")
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int) int {
	return bytes / 2
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.SamplesInDuration(d) * 2
}

// Duration returns the playback duration of the given number of bytes.
func (f Format) Duration(bytes int) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate() * 2
}

// MIMEType returns the media type string used to tag outbound frames.
func (f Format) MIMEType() string {
	switch f {
	case L16Mono16K:
		return "audio/pcm;rate=16000"
	case L16Mono24K:
		return "audio/pcm;rate=24000"
	}
	panic("pcm: invalid audio format")
}

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	}
	panic("pcm: invalid audio format")
}
