// Command codeanalyzer runs one analysis from the terminal against the
// configured content store and model provider.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"code-analyzer/internal/shared/telemetry"
)

var rootCmd = &cobra.Command{
	Use:           "codeanalyzer",
	Short:         "Analyze source files with a language model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd(), newLanguagesCmd())
}

func main() {
	defer telemetry.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		telemetry.Sync()
		os.Exit(1)
	}
}
