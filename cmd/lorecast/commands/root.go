package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorecast/lorecast/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Global configuration (loaded at init time)
	appConfig     config.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "lorecast",
	Short: "AI book analysis: summaries, quotes, vocab, podcasts, live voice chat",
	Long: `lorecast - analyze a book with a hosted generation model.

Feed it the full text of a book and it produces a dashboard of facets:
summary, notable quotes, vocabulary, a comprehension quiz, an action
plan, a bilingual reader, a stylized review, and a multi-speaker
podcast. The serve command exposes the same pipeline over HTTP plus a
websocket bridge for live voice conversation about the book.

Configuration lives in the OS config directory:
  macOS:   ~/Library/Application Support/lorecast/config.yaml
  Linux:   ~/.config/lorecast/config.yaml
  Windows: %AppData%/lorecast/config.yaml

The Gemini API key is read from the GEMINI_API_KEY environment
variable (OPENAI_API_KEY when provider is openai).

Examples:
  # Analyze a book and print the dashboard
  lorecast analyze book.txt

  # Analyze, then also generate and export the podcast
  lorecast analyze --podcast book.txt

  # Serve the HTTP API on the configured address
  lorecast serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

func initConfig() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	if configPath != "" {
		appConfig, err = config.LoadFrom(configPath)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		// Deferred: commands that need config report it, so commands
		// like 'lorecast version' still work.
		configLoadErr = err
	}
}

// getConfig returns the loaded configuration or the load error.
func getConfig() (config.Config, error) {
	if configLoadErr != nil {
		return config.Config{}, fmt.Errorf("load config: %w", configLoadErr)
	}
	return appConfig, nil
}
