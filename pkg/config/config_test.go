package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	def := Default()
	if cfg.Provider != def.Provider || cfg.ReaderWindow != def.ReaderWindow {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if time.Duration(cfg.Retry.InitialBackoff) != 5*time.Second {
		t.Errorf("initial backoff = %v", cfg.Retry.InitialBackoff)
	}
}

func TestLoadFromOverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
provider: openai
stage_delay: 2s
reader_window: 8000
retry:
  max_retries: 3
  initial_backoff: 1s
  multiplier: 2.0
podcast_voices:
  Host: Zephyr
  Guest: Charon
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if time.Duration(cfg.StageDelay) != 2*time.Second {
		t.Errorf("stage delay = %v", cfg.StageDelay)
	}
	if cfg.ReaderWindow != 8000 {
		t.Errorf("reader window = %d", cfg.ReaderWindow)
	}
	if cfg.Retry.MaxRetries != 3 || time.Duration(cfg.Retry.InitialBackoff) != time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	// Untouched fields keep their defaults.
	if cfg.Voice != "Kore" {
		t.Errorf("voice = %q; want default", cfg.Voice)
	}
	if cfg.PodcastVoices["Host"] != "Zephyr" {
		t.Errorf("podcast voices = %v", cfg.PodcastVoices)
	}
}

func TestLoadFromRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: watson\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("want error for unknown provider")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.ListenAddr = "127.0.0.1:9000"
	cfg.StageDelay = Duration(750 * time.Millisecond)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen addr = %q", got.ListenAddr)
	}
	if time.Duration(got.StageDelay) != 750*time.Millisecond {
		t.Errorf("stage delay = %v", got.StageDelay)
	}
}

func TestPipelineMapping(t *testing.T) {
	cfg := Default()
	cfg.ReaderWindow = 12000
	cfg.StageDelay = Duration(time.Second)

	ac := cfg.AnalysisConfig()
	if ac.ReaderWindow != 12000 || ac.StageDelay != time.Second {
		t.Errorf("analysis config = %+v", ac)
	}
	if ac.QuoteCount != 5 || ac.VocabCount != 10 {
		t.Errorf("pipeline defaults lost: %+v", ac)
	}

	gw := cfg.GatewayOptions()
	if gw.MaxRetries != 5 || gw.InitialBackoff != 5*time.Second || gw.Multiplier != 1.5 {
		t.Errorf("gateway options = %+v", gw)
	}
}
