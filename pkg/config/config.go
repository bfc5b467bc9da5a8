// Package config loads the application configuration from a YAML file
// under os.UserConfigDir()/lorecast/:
//
//	~/Library/Application Support/lorecast/config.yaml   (macOS)
//	~/.config/lorecast/config.yaml                       (Linux)
//	%AppData%/lorecast/config.yaml                       (Windows)
//
// Missing file or fields fall back to defaults that preserve the
// application's stock behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/gateway"
)

const appDir = "lorecast"

// Duration is a time.Duration that round-trips through YAML in the
// "1.5s" notation.
type Duration time.Duration

func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalYAML(b []byte) error {
	v, err := time.ParseDuration(strings.Trim(strings.TrimSpace(string(b)), `"'`))
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Models names the hosted models per capability.
type Models struct {
	Text   string `yaml:"text"`
	Speech string `yaml:"speech"`
	Live   string `yaml:"live"`
	Chat   string `yaml:"chat"`
}

// Retry tunes the API gateway backoff.
type Retry struct {
	MaxRetries     int      `yaml:"max_retries"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
}

// S3 configures the optional bucket-backed export store.
type S3 struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Config is the root configuration.
type Config struct {
	// Provider selects the structured-generation backend: "gemini"
	// (default, also serves speech/live/chat) or "openai" (text only;
	// speech/live/chat stay on gemini).
	Provider string `yaml:"provider"`

	Models Models `yaml:"models"`

	// Voice is the default synthesis voice; PodcastVoices maps script
	// speaker labels to voices.
	Voice         string            `yaml:"voice"`
	PodcastVoices map[string]string `yaml:"podcast_voices"`

	Retry Retry `yaml:"retry"`

	StageDelay       Duration `yaml:"stage_delay"`
	ReaderWindow     int      `yaml:"reader_window"`
	Temperature      *float32 `yaml:"temperature"`
	ChatContextLimit int      `yaml:"chat_context_limit"`

	ExportDir  string `yaml:"export_dir"`
	ListenAddr string `yaml:"listen_addr"`

	S3 *S3 `yaml:"s3"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Provider: "gemini",
		Models: Models{
			Text:   "gemini-2.5-flash",
			Speech: "gemini-2.5-flash-preview-tts",
			Live:   "gemini-2.5-flash-native-audio-preview-09-2025",
			Chat:   "gemini-2.5-flash",
		},
		Voice: "Kore",
		PodcastVoices: map[string]string{
			"Host":  "Kore",
			"Guest": "Puck",
		},
		Retry: Retry{
			MaxRetries:     5,
			InitialBackoff: Duration(5 * time.Second),
			Multiplier:     1.5,
		},
		StageDelay:       Duration(1500 * time.Millisecond),
		ReaderWindow:     15000,
		ChatContextLimit: 30000,
		ExportDir:        "exports",
		ListenAddr:       "127.0.0.1:8433",
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, "config.yaml"), nil
}

// Load reads the configuration from the default location. A missing
// file yields the defaults.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from path, layering the file's
// fields over the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) validate() error {
	switch c.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if c.ReaderWindow < 0 {
		return fmt.Errorf("config: reader_window must be non-negative")
	}
	return nil
}

// GatewayOptions maps the retry block to gateway options.
func (c Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: time.Duration(c.Retry.InitialBackoff),
		Multiplier:     c.Retry.Multiplier,
	}
}

// AnalysisConfig maps the pipeline tuning fields to the pipeline's
// configuration, keeping its own defaults for anything unset here.
func (c Config) AnalysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.StageDelay = time.Duration(c.StageDelay)
	cfg.ReaderWindow = c.ReaderWindow
	cfg.Temperature = c.Temperature
	cfg.ChatContextLimit = c.ChatContextLimit
	if len(c.PodcastVoices) > 0 {
		cfg.PodcastVoices = c.PodcastVoices
	}
	return cfg
}
