package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/audio/pcm"
)

// ErrNoAudio indicates the podcast carries a script but no audio track.
var ErrNoAudio = errors.New("playback: podcast has no audio")

// PodcastPlayer plays one pre-synthesized multi-speaker audio buffer.
// There are no per-line timestamps in the synthesis output, so line
// highlighting approximates each line's duration by its share of the
// script's character count.
type PodcastPlayer struct {
	out *Output
	now Clock

	audio []byte
	total time.Duration
	ends  []time.Duration
	lines []analysis.PodcastLine

	mu          sync.Mutex
	playing     bool
	manualPause bool
	elapsed     time.Duration
	startedAt   time.Time
}

// NewPodcastPlayer builds a player for one generated podcast. A nil
// clock uses time.Now.
func NewPodcastPlayer(out *Output, pod *analysis.Podcast, now Clock) *PodcastPlayer {
	if now == nil {
		now = time.Now
	}
	total := pcm.L16Mono24K.Duration(len(pod.Audio))
	return &PodcastPlayer{
		out:   out,
		now:   now,
		audio: pod.Audio,
		total: total,
		ends:  lineEnds(pod.Script, total),
		lines: pod.Script,
	}
}

// lineEnds maps each script line to its end timestamp, splitting the
// total duration proportionally to line character counts.
func lineEnds(lines []analysis.PodcastLine, total time.Duration) []time.Duration {
	chars := 0
	for _, l := range lines {
		chars += len(l.Text)
	}
	ends := make([]time.Duration, len(lines))
	if chars == 0 {
		for i := range ends {
			ends[i] = total
		}
		return ends
	}
	cum := 0
	for i, l := range lines {
		cum += len(l.Text)
		ends[i] = total * time.Duration(cum) / time.Duration(chars)
	}
	return ends
}

// Play starts or resumes the podcast at the recorded offset.
func (p *PodcastPlayer) Play() error {
	if len(p.audio) == 0 {
		return ErrNoAudio
	}
	p.mu.Lock()
	p.manualPause = false
	offset := p.elapsed
	p.mu.Unlock()

	err := p.out.Play(p.audio, offset,
		func() { p.onDone() },
		func() { p.onPreempted() },
	)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.playing = true
	p.startedAt = p.now()
	p.mu.Unlock()
	return nil
}

// Pause stops playback and records the offset for resume.
func (p *PodcastPlayer) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.manualPause = true
	p.elapsed += p.now().Sub(p.startedAt)
	p.mu.Unlock()
	p.out.Stop()
}

// Elapsed returns the current playback position.
func (p *PodcastPlayer) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.elapsed + p.now().Sub(p.startedAt)
	}
	return p.elapsed
}

// Playing reports whether the podcast is actively playing.
func (p *PodcastPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// ActiveLine returns the index of the script line spoken at the given
// position, or the last line once the position passes the end.
func (p *PodcastPlayer) ActiveLine(elapsed time.Duration) int {
	for i, end := range p.ends {
		if elapsed < end {
			return i
		}
	}
	if len(p.ends) == 0 {
		return 0
	}
	return len(p.ends) - 1
}

func (p *PodcastPlayer) onDone() {
	p.mu.Lock()
	if p.manualPause {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.elapsed = 0
	p.mu.Unlock()
}

func (p *PodcastPlayer) onPreempted() {
	p.mu.Lock()
	if p.playing {
		p.playing = false
		p.elapsed += p.now().Sub(p.startedAt)
	}
	p.mu.Unlock()
}
