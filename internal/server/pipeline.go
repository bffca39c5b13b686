package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"apkscope/internal/analysis"
	"apkscope/internal/mobsf"
	"apkscope/internal/report"
	"apkscope/internal/susi"
	"apkscope/pkg/models"
)

// ProgressSender interface for sending progress updates
type ProgressSender interface {
	SendMessage(msg Message)
	SendLog(message, level string)
	SendProgress(percent int, stage, message string)
	SendError(message string, err error)
}

// Config holds the external-service settings the pipeline needs
type Config struct {
	MobSFURL    string
	MobSFAPIKey string

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	SusiSourcesPath string
	SusiSinksPath   string

	OutputDir   string
	Concurrency int
}

// Pipeline runs the full APK triage sequence and reports progress
type Pipeline struct {
	cfg    Config
	sender ProgressSender
}

// NewPipeline creates a new pipeline instance
func NewPipeline(cfg Config, sender ProgressSender) *Pipeline {
	return &Pipeline{cfg: cfg, sender: sender}
}

// log sends a log message both to the client and to the console
func (p *Pipeline) log(message, level string) {
	p.sender.SendLog(message, level)

	prefix := "[INFO]"
	switch level {
	case "success":
		prefix = "[SUCCESS]"
	case "warning":
		prefix = "[WARN]"
	case "error":
		prefix = "[ERROR]"
	}
	log.Printf("%s %s", prefix, message)
}

// Run executes the full analysis pipeline for one APK on disk
func (p *Pipeline) Run(ctx context.Context, apkPath, fileName string) (*models.AnalysisResult, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &models.AnalysisResult{}

	// Step 1: Static analysis (0% - 40%)
	rep, err := p.runStaticAnalysis(ctx, apkPath, fileName, result)
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, rep, result)
}

// RunFromReport re-runs the extraction and LLM stages on a saved report,
// skipping the static-analysis round trip
func (p *Pipeline) RunFromReport(ctx context.Context, reportPath string) (*models.AnalysisResult, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	rep, err := report.Load(reportPath)
	if err != nil {
		return nil, err
	}
	p.sender.SendProgress(40, "static", "Loaded saved report")

	result := &models.AnalysisResult{ReportPath: reportPath}
	return p.finish(ctx, rep, result)
}

// finish runs the dataset matching and LLM stages shared by both entry points
func (p *Pipeline) finish(ctx context.Context, rep *report.Report, result *models.AnalysisResult) (*models.AnalysisResult, error) {
	result.Info = rep.Info()
	p.sender.SendMessage(NewScanInfoMessage(result.Info))
	p.log(fmt.Sprintf("Analyzing: %s (%s)", rep.AppName, rep.PackageName), "info")

	// Step 2: Sensitive-API dataset matching (40% - 50%)
	p.sender.SendProgress(45, "match", "Matching sensitive-API dataset...")
	stats, err := p.matchSensitiveAPIs(rep, result)
	if err != nil {
		return nil, err
	}
	p.sender.SendProgress(50, "match", fmt.Sprintf("Matched %d suspicious file entries", len(stats)))

	// The analyzer is only needed when there is something to summarize
	var analyzer *analysis.Analyzer
	if len(rep.PermissionLines()) > 0 || len(stats) > 0 {
		analyzer, err = analysis.NewAnalyzer(p.cfg.GroqAPIKey, p.cfg.GroqBaseURL, p.cfg.GroqModel, p.cfg.Concurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM analyzer: %w", err)
		}
	}

	// Step 3: Permission analysis (50% - 75%)
	if err := p.analyzePermissions(ctx, analyzer, rep, result); err != nil {
		return nil, err
	}

	// Step 4: Sensitive-API risk assessment (75% - 95%)
	if err := p.assessAPIs(ctx, analyzer, stats, result); err != nil {
		return nil, err
	}

	// Step 5: Final report (95% - 100%)
	p.sender.SendProgress(95, "report", "Writing final report...")
	if result.APIReport != nil {
		apiReportPath := filepath.Join(p.cfg.OutputDir, "malware_report.json")
		if err := writeJSON(apiReportPath, result.APIReport); err != nil {
			return nil, err
		}
		result.APIReportPath = apiReportPath
		p.log(fmt.Sprintf("Final report saved to %s", apiReportPath), "success")
	}
	p.sender.SendProgress(100, "report", "Analysis complete")

	p.log("Analysis pipeline complete", "success")
	return result, nil
}

// runStaticAnalysis uploads the APK and waits for the JSON report
func (p *Pipeline) runStaticAnalysis(ctx context.Context, apkPath, fileName string, result *models.AnalysisResult) (*report.Report, error) {
	file, err := os.Open(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open APK: %w", err)
	}
	defer file.Close()

	client := mobsf.NewClient(p.cfg.MobSFURL, p.cfg.MobSFAPIKey)
	client.SetLogCallback(func(message, level string) {
		p.sender.SendLog(message, level)
	})

	p.sender.SendProgress(0, "static", "Uploading APK to static-analysis service...")
	upload, err := client.Upload(ctx, fileName, file)
	if err != nil {
		return nil, fmt.Errorf("static analysis upload failed: %w", err)
	}
	p.sender.SendProgress(10, "static", fmt.Sprintf("Uploaded %s (hash %s)", upload.FileName, upload.Hash))

	if err := client.StartScan(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to start scan: %w", err)
	}
	p.sender.SendProgress(15, "static", "Scan started, waiting for report...")

	data, err := client.WaitForReport(ctx, upload.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}

	rep, err := report.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	reportPath := filepath.Join(p.cfg.OutputDir, "mobsf_report.json")
	if err := rep.Save(reportPath); err != nil {
		return nil, err
	}
	result.ReportPath = reportPath

	p.sender.SendProgress(40, "static", "Static analysis complete")
	p.log(fmt.Sprintf("Report saved to %s", reportPath), "success")
	return rep, nil
}

// matchSensitiveAPIs loads the SuSi dataset and aggregates report matches
func (p *Pipeline) matchSensitiveAPIs(rep *report.Report, result *models.AnalysisResult) ([]susi.FileStats, error) {
	methods, err := susi.LoadMethods(p.cfg.SusiSourcesPath, p.cfg.SusiSinksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensitive-API dataset: %w", err)
	}
	if len(methods) == 0 {
		p.log("Sensitive-API dataset is empty, no API matches possible", "warning")
	} else {
		p.log(fmt.Sprintf("Loaded %d sensitive-API methods", len(methods)), "info")
	}

	entries := rep.APIEntries()
	p.log(fmt.Sprintf("Found %d API behavior entries in report", len(entries)), "info")

	matches := susi.MatchEntries(entries, methods)
	stats := susi.Summarize(matches)

	summaryPath := filepath.Join(p.cfg.OutputDir, "suspicious_summary.txt")
	if err := susi.WriteSummary(stats, summaryPath); err != nil {
		return nil, err
	}
	result.SummaryPath = summaryPath

	return stats, nil
}

// analyzePermissions runs the permission LLM pipeline
func (p *Pipeline) analyzePermissions(ctx context.Context, analyzer *analysis.Analyzer, rep *report.Report, result *models.AnalysisResult) error {
	lines := rep.PermissionLines()
	if len(lines) == 0 {
		p.log("No permissions found in the report, skipping permission analysis", "warning")
		p.sender.SendProgress(75, "permissions", "No permissions to analyze")
		return nil
	}

	p.sender.SendProgress(50, "permissions", fmt.Sprintf("Analyzing %d permissions...", len(lines)))
	summary, err := analyzer.AnalyzePermissions(ctx, lines)
	if err != nil {
		return fmt.Errorf("permission analysis failed: %w", err)
	}

	result.PermissionSummary = summary
	p.sender.SendMessage(NewPermissionAnalysisMessage(summary))
	p.sender.SendProgress(75, "permissions", "Permission analysis complete")
	return nil
}

// assessAPIs runs the sensitive-API LLM pipeline
func (p *Pipeline) assessAPIs(ctx context.Context, analyzer *analysis.Analyzer, stats []susi.FileStats, result *models.AnalysisResult) error {
	lines := susi.RenderSummary(stats)
	if len(lines) == 0 {
		p.log("No sensitive-API findings, skipping risk assessment", "warning")
		p.sender.SendProgress(95, "apis", "No sensitive-API findings")
		return nil
	}

	p.sender.SendProgress(75, "apis", fmt.Sprintf("Assessing %d suspicious entries...", len(lines)))
	apiReport, err := analyzer.AssessAPIFindings(ctx, lines)
	if err != nil {
		return fmt.Errorf("sensitive-API assessment failed: %w", err)
	}

	result.APIReport = apiReport
	p.sender.SendMessage(NewAPIAnalysisMessage(apiReport))
	p.sender.SendProgress(95, "apis", "Sensitive-API assessment complete")
	return nil
}

// writeJSON writes a value to disk as indented JSON
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
