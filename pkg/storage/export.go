package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/audio/wav"
)

// ErrNoAudio indicates an audio export was requested for a facet that
// has no synthesized audio attached.
var ErrNoAudio = errors.New("storage: no audio to export")

// Exporter turns in-memory analysis artifacts into downloadable files.
type Exporter struct {
	fs FileStore
}

// NewExporter wraps a file store.
func NewExporter(fs FileStore) *Exporter {
	return &Exporter{fs: fs}
}

// ExportWAV muxes raw PCM into a WAV file and writes it under name.
// Returns the store path of the artifact.
func (e *Exporter) ExportWAV(ctx context.Context, name string, pcmData []byte, sampleRate int) (string, error) {
	path := sanitize(name) + ".wav"
	w, err := e.fs.Write(ctx, path)
	if err != nil {
		return "", fmt.Errorf("storage: export %s: %w", path, err)
	}
	_, werr := w.Write(wav.Encode(pcmData, sampleRate))
	if cerr := w.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", fmt.Errorf("storage: export %s: %w", path, werr)
	}
	return path, nil
}

// ExportPodcast writes the podcast's audio track as a WAV artifact.
func (e *Exporter) ExportPodcast(ctx context.Context, name string, pod *analysis.Podcast) (string, error) {
	if pod == nil || len(pod.Audio) == 0 {
		return "", ErrNoAudio
	}
	return e.ExportWAV(ctx, name, pod.Audio, 24000)
}

// ExportReport writes the analysis aggregate as a JSON bundle.
// Audio payloads are not part of the bundle.
func (e *Exporter) ExportReport(ctx context.Context, name string, result *analysis.Result) (string, error) {
	path := sanitize(name) + ".json"
	w, err := e.fs.Write(ctx, path)
	if err != nil {
		return "", fmt.Errorf("storage: export %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	werr := enc.Encode(result)
	if cerr := w.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", fmt.Errorf("storage: export %s: %w", path, werr)
	}
	return path, nil
}

// Open reads back a previously exported artifact, e.g. to serve a
// download.
func (e *Exporter) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return e.fs.Read(ctx, path)
}

// sanitize maps a user-supplied artifact name to a safe store path
// component.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "artifact"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
