package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	analyzePodcast bool
	analyzeReport  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a book text file and print the dashboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzePodcast, "podcast", false, "also generate the podcast and export its audio")
	analyzeCmd.Flags().BoolVar(&analyzeReport, "report", false, "export the full analysis as a JSON report")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read book: %w", err)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}

	slog.Info("analyzing", "file", args[0], "bytes", len(text))
	start := time.Now()
	if err := a.pipeline.Start(ctx, string(text)); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	slog.Info("dashboard ready", "elapsed", time.Since(start).Round(time.Millisecond))

	// Primary facets first; the secondary stages keep running behind.
	fmt.Println(renderDashboard(a.pipeline.Snapshot()))

	slog.Info("waiting for vocabulary, quiz, and action plan")
	select {
	case <-a.pipeline.SecondaryDone():
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Println(renderDashboard(a.pipeline.Snapshot()))

	if analyzePodcast {
		slog.Info("generating podcast")
		pod, err := a.pipeline.GeneratePodcast(ctx)
		if err != nil {
			return fmt.Errorf("podcast: %w", err)
		}
		fmt.Println(renderDashboard(a.pipeline.Snapshot()))
		if len(pod.Audio) > 0 {
			path, err := a.exporter.ExportPodcast(ctx, "podcast-"+a.pipeline.SessionID(), pod)
			if err != nil {
				return fmt.Errorf("export podcast: %w", err)
			}
			slog.Info("podcast audio exported", "path", path, "dir", a.cfg.ExportDir)
		} else {
			slog.Warn("podcast audio unavailable, script only")
		}
	}

	if analyzeReport {
		result := a.pipeline.Snapshot()
		path, err := a.exporter.ExportReport(ctx, "report-"+a.pipeline.SessionID(), &result)
		if err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		slog.Info("report exported", "path", path, "dir", a.cfg.ExportDir)
	}

	return nil
}
