package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"code-analyzer/internal/bootstrap"
	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/shared/config"
	"code-analyzer/internal/shared/storage/object"
	"code-analyzer/internal/shared/telemetry"
)

type analyzeFlags struct {
	sourceContainer      string
	sourceKey            string
	destinationContainer string
	modelID              string
	promptAdditions      string
	print                bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one source file and store the report",
		Long: `Fetch a source file, send it to the configured model and write the
Markdown report to the destination container.

The outcome is printed as JSON. With --print the stored report is rendered
to the terminal as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.sourceContainer, "source-container", "", "container holding the source file")
	cmd.Flags().StringVar(&f.sourceKey, "source-key", "", "key of the source file")
	cmd.Flags().StringVar(&f.destinationContainer, "destination-container", "", "container for the report (defaults to DEFAULT_DESTINATION_BUCKET)")
	cmd.Flags().StringVar(&f.modelID, "model", "", "model identifier override")
	cmd.Flags().StringVar(&f.promptAdditions, "prompt-additions", "", "extra reviewer instructions")
	cmd.Flags().BoolVar(&f.print, "print", false, "render the stored report")
	_ = cmd.MarkFlagRequired("source-container")
	_ = cmd.MarkFlagRequired("source-key")
	return cmd
}

func runAnalyze(cmd *cobra.Command, f analyzeFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := telemetry.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	destination := f.destinationContainer
	if destination == "" {
		destination = cfg.DefaultDestinationBucket
	}
	req, err := pipeline.NewAnalysisRequest(f.sourceContainer, f.sourceKey, destination, f.modelID, f.promptAdditions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := bootstrap.BuildCore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	out := core.Pipeline.Run(ctx, req)
	if err := writeOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Succeeded() {
		return fmt.Errorf("analysis failed: %s", out.ErrorKind)
	}
	if f.print {
		return printReport(ctx, cmd.OutOrStdout(), core.Store, destination, out.OutputKey)
	}
	return nil
}

func writeOutcome(w io.Writer, out pipeline.AnalysisOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printReport(ctx context.Context, w io.Writer, store object.ContentStore, container, key string) error {
	content, err := store.Fetch(ctx, container, key)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	rendered, err := renderMarkdown(string(content.Bytes))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return renderer.Render(md)
}
