package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lorecast/lorecast/pkg/gateway"
	"github.com/lorecast/lorecast/pkg/gen"
	"github.com/lorecast/lorecast/pkg/speechcache"
)

// Speaker resolves speech audio cache-first: a cache hit skips the
// hosted call entirely, a miss synthesizes through the gateway and
// caches the result keyed by the exact text. It is the shared resolution
// path for the players here and for server-side utterance requests.
type Speaker struct {
	cache *speechcache.Cache
	gw    *gateway.Gateway
	tts   gen.SpeechSynthesizer
	voice string
}

// NewSpeaker builds the cache-first resolution path. cache may be nil to
// disable caching.
func NewSpeaker(cache *speechcache.Cache, gw *gateway.Gateway, tts gen.SpeechSynthesizer, voice string) *Speaker {
	return &Speaker{cache: cache, gw: gw, tts: tts, voice: voice}
}

// Speak returns the audio for text, synthesizing on a cache miss.
func (s *Speaker) Speak(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		if audio, ok := s.cache.Get(text); ok {
			return audio, nil
		}
	}
	audio, err := gateway.Call(ctx, s.gw, "synthesize", func(ctx context.Context) ([]byte, error) {
		return s.tts.Synthesize(ctx, gen.SpeakRequest{Text: text, Voice: s.voice})
	})
	if err != nil {
		return nil, fmt.Errorf("playback: synthesize: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Put(text, audio); err != nil {
			slog.Warn("speech cache write failed", "err", err)
		}
	}
	return audio, nil
}

// Player plays one utterance at a time, keyed by a caller-chosen id.
// Playing the id that is already active toggles it off; playing a
// different id replaces the active playback.
type Player struct {
	out *Output
	syn *Speaker

	mu     sync.Mutex
	active string
}

// NewPlayer builds a single-utterance player. cache may be nil to
// disable caching.
func NewPlayer(out *Output, cache *speechcache.Cache, gw *gateway.Gateway, tts gen.SpeechSynthesizer, voice string) *Player {
	return &Player{out: out, syn: NewSpeaker(cache, gw, tts, voice)}
}

// Play toggles playback of text under id. Audio is resolved cache-first.
func (p *Player) Play(ctx context.Context, text, id string) error {
	p.mu.Lock()
	if p.active == id {
		p.active = ""
		p.mu.Unlock()
		p.out.Stop()
		return nil
	}
	p.mu.Unlock()

	audio, err := p.syn.Speak(ctx, text)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.active = id
	p.mu.Unlock()

	clear := func() {
		p.mu.Lock()
		if p.active == id {
			p.active = ""
		}
		p.mu.Unlock()
	}
	if err := p.out.Play(audio, 0, clear, clear); err != nil {
		// A failed device start never became active.
		clear()
		return err
	}
	return nil
}

// ActiveID returns the id of the active utterance, empty when idle.
func (p *Player) ActiveID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
