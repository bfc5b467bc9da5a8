package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorecast/lorecast/pkg/gen"
)

// GeneratePodcast produces the podcast facet on demand. The script is a
// text-only generation call; the audio is synthesized in a second call
// against the full script text. A script failure leaves the facet
// unchanged; an audio failure is tolerated and logged, leaving the script
// displayable without playback.
func (p *Pipeline) GeneratePodcast(ctx context.Context) (*Podcast, error) {
	session, err := p.readySession()
	if err != nil {
		return nil, err
	}
	mu := p.facetMu[FacetPodcast]
	mu.Lock()
	defer mu.Unlock()

	speakers := p.speakerLabels()

	var script podcastScript
	prompt := podcastPrompt(p.sourceText(), speakers)
	if err := p.generateJSON(ctx, "podcast-script", prompt, podcastSchema, &script); err != nil {
		return nil, fmt.Errorf("podcast script stage: %w", err)
	}
	if len(script.Script) == 0 {
		return nil, fmt.Errorf("%w: empty podcast script", gen.ErrBadResponse)
	}

	pod := &Podcast{Title: script.Title, Script: script.Script}
	pod.Audio = p.synthesizePodcast(ctx, pod)

	if !p.merge(session, func(r *Result) { r.Podcast = pod }) {
		return nil, ErrNotReady
	}
	return pod, nil
}

// synthesizePodcast renders the whole script in one multi-speaker call.
// Returns nil on any failure; audio absence is an accepted degradation.
func (p *Pipeline) synthesizePodcast(ctx context.Context, pod *Podcast) []byte {
	if p.speech == nil {
		return nil
	}
	audio, err := p.synthesize(ctx, gen.SpeakRequest{
		Text:          scriptText(pod.Script),
		SpeakerVoices: p.cfg.PodcastVoices,
	})
	if err != nil {
		p.logger.Warn("podcast audio synthesis failed, script only", "err", err)
		return nil
	}
	return audio
}

func (p *Pipeline) synthesize(ctx context.Context, req gen.SpeakRequest) ([]byte, error) {
	var audio []byte
	err := p.gw.Do(ctx, "podcast-audio", func(ctx context.Context) error {
		b, err := p.speech.Synthesize(ctx, req)
		if err != nil {
			return err
		}
		audio = b
		return nil
	})
	return audio, err
}

// scriptText flattens the script into the speaker-attributed transcript
// fed to multi-speaker synthesis.
func scriptText(lines []PodcastLine) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line.Speaker)
		sb.WriteString(": ")
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
