package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apkscope",
	Short: "APKScope triages Android APKs through static analysis and LLM risk summarization",
	Long: `APKScope uploads an APK to a MobSF-compatible static-analysis service,
matches the resulting report against a SuSi sensitive-API dataset, and asks an
OpenAI-compatible LLM endpoint for risk assessments and executive summaries.`,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
