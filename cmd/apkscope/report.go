package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"apkscope/internal/server"
)

var (
	reportPath string
	reportOut  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-run the extraction and LLM stages on a saved report",
	Long: `Reads a previously saved static-analysis report and re-runs the
sensitive-API matching and LLM summarization without contacting the
static-analysis service.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportPath, "report", "./output_files/mobsf_report.json", "Path to a saved report JSON")
	reportCmd.Flags().StringVar(&reportOut, "out", "./output_files", "Directory for report artifacts")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig(reportOut)
	if err != nil {
		return err
	}

	if _, err := os.Stat(reportPath); err != nil {
		return fmt.Errorf("cannot read report: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := server.NewPipeline(cfg, newConsoleSender())
	result, err := pipeline.RunFromReport(ctx, reportPath)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}
