// Package live runs a bidirectional voice conversation: captured
// microphone audio streams up to the model while model speech streams
// back down and is scheduled for gapless playback.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lorecast/lorecast/pkg/audio/pcm"
	"github.com/lorecast/lorecast/pkg/gen"
)

// ErrMicPermission indicates the capture device could not be acquired
// because the user denied (or the platform withheld) microphone access.
var ErrMicPermission = errors.New("live: microphone permission denied")

// DefaultFrameSamples is the number of 16 kHz samples per uplink frame.
const DefaultFrameSamples = 4096

// CaptureSource is an open audio input producing raw 16-bit signed
// little-endian mono PCM at SampleRate.
type CaptureSource interface {
	io.ReadCloser
	SampleRate() int
}

// SourceOpener acquires a capture source. Implementations return
// ErrMicPermission when device access is denied.
type SourceOpener func(ctx context.Context) (CaptureSource, error)

// Sink receives downlink audio for playback. PlayAt queues one raw
// 24 kHz mono PCM chunk to begin at the given start time; Discard drops
// any queued chunks that have not started playing; TurnComplete marks
// the end of the model's current speech turn.
type Sink interface {
	PlayAt(audio []byte, start time.Time) error
	Discard()
	TurnComplete()
}

// Options configures a live session.
type Options struct {
	Dialer     gen.LiveDialer
	OpenSource SourceOpener
	Sink       Sink

	// SystemInstruction and Voice prime the model end of the stream.
	SystemInstruction string
	Voice             string

	// FrameSamples sets the uplink frame size in samples.
	// Zero means DefaultFrameSamples.
	FrameSamples int

	Clock  Clock
	Logger *slog.Logger
}

// Session is a running live conversation. It owns the capture source
// and the model stream and pumps both until closed.
type Session struct {
	stream gen.LiveSession
	source CaptureSource
	sink   Sink
	sched  *Scheduler
	logger *slog.Logger

	frameBytes int

	speaking  atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	mu       sync.Mutex
	closeErr error
	runErr   error
}

// Connect acquires the capture source, dials the model stream, and
// starts the uplink and downlink pumps. The returned session must be
// closed to release the device and the stream.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	if opts.Dialer == nil || opts.OpenSource == nil || opts.Sink == nil {
		return nil, errors.New("live: dialer, source opener, and sink are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	frameSamples := opts.FrameSamples
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}

	source, err := opts.OpenSource(ctx)
	if err != nil {
		if errors.Is(err, ErrMicPermission) {
			return nil, err
		}
		return nil, fmt.Errorf("live: open capture source: %w", err)
	}
	if rate := source.SampleRate(); rate != pcm.L16Mono16K.SampleRate() {
		rs, err := newResampleSource(source, pcm.L16Mono16K.SampleRate())
		if err != nil {
			source.Close()
			return nil, err
		}
		source = rs
	}

	stream, err := opts.Dialer.DialLive(ctx, gen.LiveConfig{
		SystemInstruction: opts.SystemInstruction,
		Voice:             opts.Voice,
	})
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("live: dial stream: %w", err)
	}

	s := &Session{
		stream:     stream,
		source:     source,
		sink:       opts.Sink,
		sched:      NewScheduler(opts.Clock),
		logger:     opts.Logger,
		frameBytes: frameSamples * 2,
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.pumpUplink()
	go s.pumpDownlink()
	return s, nil
}

// ModelSpeaking reports whether model audio is currently scheduled.
func (s *Session) ModelSpeaking() bool { return s.speaking.Load() }

// Done is closed once both pumps have stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped the session, nil after a clean close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Close tears down the stream and releases the capture source. Safe to
// call multiple times and from any goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		err := errors.Join(s.stream.Close(), s.source.Close())
		s.mu.Lock()
		s.closeErr = err
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// pumpUplink reads fixed-size frames from the capture source and sends
// them upstream until the source drains or the session closes.
func (s *Session) pumpUplink() {
	mimeType := pcm.L16Mono16K.MIMEType()
	buf := make([]byte, s.frameBytes)
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		n, err := io.ReadFull(s.source, buf)
		if n > 0 {
			if serr := s.stream.SendAudio(buf[:n], mimeType); serr != nil {
				s.stop(fmt.Errorf("live: send frame: %w", serr))
				return
			}
		}
		if err != nil {
			select {
			case <-s.closed:
			default:
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					s.stop(fmt.Errorf("live: capture: %w", err))
				}
			}
			return
		}
	}
}

// pumpDownlink receives model events and schedules audio on the sink.
func (s *Session) pumpDownlink() {
	defer close(s.done)
	for {
		ev, err := s.stream.Receive()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.stop(fmt.Errorf("live: receive: %w", err))
			}
			return
		}

		if ev.Interrupted {
			s.sched.Interrupt()
			s.sink.Discard()
			s.speaking.Store(false)
			s.logger.Debug("model speech interrupted")
		}
		if len(ev.Audio) > 0 {
			start := s.sched.Schedule(pcm.L16Mono24K.Duration(len(ev.Audio)))
			if err := s.sink.PlayAt(ev.Audio, start); err != nil {
				s.stop(fmt.Errorf("live: playback: %w", err))
				return
			}
			s.speaking.Store(true)
		}
		if ev.TurnComplete {
			s.speaking.Store(false)
			s.sink.TurnComplete()
		}
	}
}

func (s *Session) stop(err error) {
	s.mu.Lock()
	if s.runErr == nil {
		s.runErr = err
	}
	s.mu.Unlock()
	s.logger.Warn("live session stopped", "err", err)
	s.Close()
}
