package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lorecast/lorecast/pkg/analysis"
)

// Language selects which side of a bilingual segment is spoken.
type Language int

const (
	Original Language = iota
	Translation
)

func (l Language) textOf(seg analysis.ReaderSegment) string {
	if l == Translation {
		return seg.Translation
	}
	return seg.Original
}

// ErrNoSegments indicates playback was requested with nothing loaded.
var ErrNoSegments = errors.New("playback: no reader segments loaded")

// ReaderPlayer walks a list of bilingual segments: play, pause with
// exact-offset resume, auto-advance on natural segment end, and
// mid-segment language switching that keeps the elapsed position.
type ReaderPlayer struct {
	out *Output
	syn *Speaker
	now Clock

	mu          sync.Mutex
	segments    []analysis.ReaderSegment
	language    Language
	index       int
	playing     bool
	manualPause bool
	elapsed     time.Duration
	startedAt   time.Time
}

// NewReaderPlayer builds a reader player sharing the output guard and
// speech resolution path with the other players. A nil clock uses
// time.Now.
func NewReaderPlayer(out *Output, syn *Player, now Clock) *ReaderPlayer {
	if now == nil {
		now = time.Now
	}
	return &ReaderPlayer{out: out, syn: syn.syn, now: now}
}

// SetSegments replaces the segment list and rewinds to the first one.
// Any active playback keeps running until stopped or preempted.
func (r *ReaderPlayer) SetSegments(segs []analysis.ReaderSegment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append([]analysis.ReaderSegment(nil), segs...)
	r.index = 0
	r.elapsed = 0
	r.playing = false
	r.manualPause = false
}

// Play starts or resumes the current segment at the recorded offset.
func (r *ReaderPlayer) Play(ctx context.Context) error {
	r.mu.Lock()
	if len(r.segments) == 0 || r.index >= len(r.segments) {
		r.mu.Unlock()
		return ErrNoSegments
	}
	r.manualPause = false
	text := r.language.textOf(r.segments[r.index])
	offset := r.elapsed
	index := r.index
	r.mu.Unlock()

	audio, err := r.syn.Speak(ctx, text)
	if err != nil {
		return err
	}

	err = r.out.Play(audio, offset,
		func() { r.onSegmentDone(ctx, index) },
		func() { r.onPreempted() },
	)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.playing = true
	r.startedAt = r.now()
	r.mu.Unlock()
	return nil
}

// Pause stops playback and records the elapsed offset so Play resumes
// exactly where it left off. The manual-pause flag keeps a completion
// callback racing with the stop from advancing to the next segment.
func (r *ReaderPlayer) Pause() {
	r.mu.Lock()
	if !r.playing {
		r.mu.Unlock()
		return
	}
	r.manualPause = true
	r.playing = false
	r.elapsed += r.now().Sub(r.startedAt)
	r.mu.Unlock()
	r.out.Stop()
}

// SwitchLanguage flips the spoken side. Mid-play the elapsed offset is
// preserved and the other side is resynthesized from that position.
func (r *ReaderPlayer) SwitchLanguage(ctx context.Context, lang Language) error {
	r.mu.Lock()
	if r.language == lang {
		r.mu.Unlock()
		return nil
	}
	r.language = lang
	wasPlaying := r.playing
	if wasPlaying {
		r.playing = false
		r.manualPause = true
		r.elapsed += r.now().Sub(r.startedAt)
	}
	r.mu.Unlock()

	if !wasPlaying {
		return nil
	}
	r.out.Stop()
	return r.Play(ctx)
}

// Index returns the current segment index.
func (r *ReaderPlayer) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Playing reports whether a segment is actively playing.
func (r *ReaderPlayer) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// onSegmentDone runs when a segment's playback reports completion.
// After a manual pause the completion is a side effect of the stop, not
// a natural end, so it must not advance.
func (r *ReaderPlayer) onSegmentDone(ctx context.Context, index int) {
	r.mu.Lock()
	if r.manualPause || index != r.index {
		r.mu.Unlock()
		return
	}
	r.playing = false
	r.elapsed = 0
	r.index++
	hasNext := r.index < len(r.segments)
	r.mu.Unlock()

	if hasNext {
		if err := r.Play(ctx); err != nil {
			slog.Warn("reader auto-advance failed", "segment", index+1, "err", err)
		}
	}
}

func (r *ReaderPlayer) onPreempted() {
	r.mu.Lock()
	if r.playing {
		r.playing = false
		r.elapsed += r.now().Sub(r.startedAt)
	}
	r.mu.Unlock()
}
