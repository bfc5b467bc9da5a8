package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/config"
	"github.com/lorecast/lorecast/pkg/gateway"
	"github.com/lorecast/lorecast/pkg/gen"
	"github.com/lorecast/lorecast/pkg/playback"
	"github.com/lorecast/lorecast/pkg/speechcache"
	"github.com/lorecast/lorecast/pkg/storage"
)

// app bundles the wired collaborators the commands share.
type app struct {
	cfg      config.Config
	pipeline *analysis.Pipeline
	gemini   *gen.Gemini
	speaker  *playback.Speaker
	exporter *storage.Exporter
}

// buildApp constructs the generation backend, gateway, pipeline, and
// export store from the loaded configuration.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	gemini := &gen.Gemini{
		Client:      client,
		TextModel:   cfg.Models.Text,
		SpeechModel: cfg.Models.Speech,
		LiveModel:   cfg.Models.Live,
		ChatModel:   cfg.Models.Chat,
	}

	// Speech, live, and chat stay on gemini regardless of provider.
	var text gen.TextGenerator = gemini
	if cfg.Provider == "openai" {
		oc := openai.NewClient(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
		text = &gen.OpenAI{Client: &oc, Model: cfg.Models.Text}
	}

	gw := gateway.New(cfg.GatewayOptions(), slog.Default())
	pipeline := analysis.New(text, gemini, gemini, gw, cfg.AnalysisConfig(), slog.Default())

	cache, err := speechcache.New()
	if err != nil {
		return nil, fmt.Errorf("open speech cache: %w", err)
	}

	fs, err := storage.NewLocal(cfg.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("open export directory: %w", err)
	}

	return &app{
		cfg:      cfg,
		pipeline: pipeline,
		gemini:   gemini,
		speaker:  playback.NewSpeaker(cache, gw, gemini, cfg.Voice),
		exporter: storage.NewExporter(fs),
	}, nil
}
