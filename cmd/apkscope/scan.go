package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"apkscope/internal/analysis"
	"apkscope/internal/server"
	"apkscope/pkg/models"
)

var (
	scanFile string
	scanOut  string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Upload an APK and run the full triage pipeline",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFile, "file", "", "Path to the APK to analyze (required)")
	scanCmd.Flags().StringVar(&scanOut, "out", "./output_files", "Directory for report artifacts")
	scanCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(scanCmd)
}

func pipelineConfig(outputDir string) (server.Config, error) {
	cfg := server.Config{
		MobSFURL:        getEnv("MOBSF_URL", "http://localhost:8000"),
		MobSFAPIKey:     getEnv("MOBSF_API_KEY", ""),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", analysis.DefaultBaseURL),
		GroqModel:       getEnv("GROQ_MODEL", analysis.DefaultModel),
		SusiSourcesPath: getEnv("SUSI_SOURCES_PATH", "datasets/Ouput_CatSources_v0_9.txt"),
		SusiSinksPath:   getEnv("SUSI_SINKS_PATH", "datasets/Ouput_CatSinks_v0_9.txt"),
		OutputDir:       outputDir,
	}
	if cfg.GroqAPIKey == "" {
		return cfg, fmt.Errorf("GROQ_API_KEY is required")
	}
	return cfg, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig(scanOut)
	if err != nil {
		return err
	}
	if cfg.MobSFAPIKey == "" {
		return fmt.Errorf("MOBSF_API_KEY is required")
	}

	if _, err := os.Stat(scanFile); err != nil {
		return fmt.Errorf("cannot read APK: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := server.NewPipeline(cfg, newConsoleSender())
	result, err := pipeline.Run(ctx, scanFile, filepath.Base(scanFile))
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *models.AnalysisResult) {
	title := color.New(color.FgBlue, color.Bold)

	if result.Info != nil {
		title.Println("\nApplication")
		fmt.Printf("  %s (%s) version %s\n", result.Info.AppName, result.Info.PackageName, result.Info.VersionName)
		fmt.Printf("  MD5 %s, %d permissions\n", result.Info.MD5, result.Info.Permissions)
	}

	title.Println("\nPermission Analysis")
	if result.PermissionSummary != "" {
		fmt.Println(result.PermissionSummary)
	} else {
		fmt.Println("  No permissions to analyze.")
	}

	title.Println("\nSensitive API Analysis")
	if result.APIReport != nil {
		stats := result.APIReport.Statistics
		fmt.Printf("  Chunks: %d | High risk: %d | Medium risk: %d\n\n",
			stats.TotalChunks, stats.HighRisk, stats.MediumRisk)
		fmt.Println(result.APIReport.ExecutiveSummary)
	} else {
		fmt.Println("  No sensitive-API findings.")
	}

	if result.ReportPath != "" {
		fmt.Printf("\nArtifacts: %s", result.ReportPath)
		if result.APIReportPath != "" {
			fmt.Printf(", %s", result.APIReportPath)
		}
		fmt.Println()
	}
}
