package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/openaicompat"

	"apkscope/pkg/models"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible inference endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel matches the model the report prompts were tuned against
	DefaultModel = "llama3-70b-8192"

	// PermissionChunkSize is the number of permission lines per LLM request
	PermissionChunkSize = 100
	// APIChunkSize is the number of suspicious-summary lines per LLM request
	APIChunkSize = 150

	maxAttempts = 3
)

// Analyzer runs LLM risk analysis over extracted report data
type Analyzer struct {
	model     fantasy.LanguageModel
	semaphore chan struct{} // Limits concurrent LLM requests
}

// NewAnalyzer creates an analyzer against an OpenAI-compatible endpoint
func NewAnalyzer(apiKey, baseURL, modelName string, concurrencyLimit int) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for LLM analysis")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if concurrencyLimit <= 0 {
		concurrencyLimit = 3
	}

	provider, err := openaicompat.New(
		openaicompat.WithBaseURL(baseURL),
		openaicompat.WithAPIKey(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	ctx := context.Background()
	model, err := provider.LanguageModel(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}

	return &Analyzer{
		model:     model,
		semaphore: make(chan struct{}, concurrencyLimit),
	}, nil
}

// ChunkLines joins lines into newline-separated chunks of at most size lines
func ChunkLines(lines []string, size int) []string {
	if size <= 0 || len(lines) == 0 {
		return nil
	}
	var chunks []string
	for i := 0; i < len(lines); i += size {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, strings.Join(lines[i:end], "\n"))
	}
	return chunks
}

// generateText runs one plain-text generation with retry and backoff
func (a *Analyzer) generateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	agent := fantasy.NewAgent(a.model, fantasy.WithSystemPrompt(systemPrompt))

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<attempt) * time.Second
			log.Printf("  [LLM] Attempt %d failed, retrying in %s: %v", attempt, wait, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: prompt})
		if err != nil {
			lastErr = err
			continue
		}

		text := strings.TrimSpace(result.Response.Content.Text())
		if text == "" {
			lastErr = fmt.Errorf("model returned empty response")
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("LLM request failed after %d attempts: %w", maxAttempts, lastErr)
}

// generateAssessment runs one structured generation via the submit tool
func (a *Analyzer) generateAssessment(ctx context.Context, prompt string) (*models.RiskAssessment, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<attempt) * time.Second
			log.Printf("  [LLM] Attempt %d failed, retrying in %s: %v", attempt, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		assessment := models.RiskAssessment{}
		submitted := false
		submitTool := fantasy.NewAgentTool(
			"submit_assessment",
			"Submit your risk assessment for this chunk of findings", func(
				_ context.Context,
				input models.RiskAssessment,
				_ fantasy.ToolCall,
			) (fantasy.ToolResponse, error) {
				assessment = input
				submitted = true
				return fantasy.ToolResponse{
					Content: "Assessment received",
				}, nil
			})

		agent := fantasy.NewAgent(a.model,
			fantasy.WithSystemPrompt(apiSystemPrompt),
			fantasy.WithTools(submitTool))

		if _, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: prompt}); err != nil {
			lastErr = err
			continue
		}
		if !submitted {
			lastErr = fmt.Errorf("model did not submit an assessment")
			continue
		}
		return &assessment, nil
	}

	return nil, fmt.Errorf("LLM assessment failed after %d attempts: %w", maxAttempts, lastErr)
}

// AnalyzePermissions runs the permission pipeline: per-chunk analysis in
// parallel, then an executive summary over the joined results. Returns an
// empty summary when there are no permissions.
func (a *Analyzer) AnalyzePermissions(ctx context.Context, lines []string) (string, error) {
	if len(lines) == 0 {
		return "", nil
	}

	chunks := ChunkLines(lines, PermissionChunkSize)
	log.Printf("Analyzing %d permission chunk(s) (max %d concurrent)", len(chunks), cap(a.semaphore))

	results := make([]string, len(chunks))
	var wg sync.WaitGroup
	errChan := make(chan error, len(chunks))

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()

			select {
			case a.semaphore <- struct{}{}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
			defer func() { <-a.semaphore }()

			result, err := a.generateText(ctx, permissionSystemPrompt, buildPermissionPrompt(text))
			if err != nil {
				errChan <- fmt.Errorf("permission chunk %d failed: %w", idx+1, err)
				return
			}
			results[idx] = result
		}(i, chunk)
	}

	wg.Wait()
	close(errChan)

	// Fail fast on the first error
	if err := <-errChan; err != nil {
		return "", err
	}

	combined := strings.Join(results, "\n\n---\n\n")
	summary, err := a.generateText(ctx, permissionExecSystemPrompt, buildPermissionSummaryPrompt(combined))
	if err != nil {
		return "", fmt.Errorf("failed to generate permission summary: %w", err)
	}

	return summary, nil
}

// AssessAPIFindings runs the sensitive-API pipeline: structured per-chunk
// assessments, aggregate statistics, and a final executive summary. Returns
// nil when there are no findings.
func (a *Analyzer) AssessAPIFindings(ctx context.Context, lines []string) (*models.APIReport, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	chunks := ChunkLines(lines, APIChunkSize)
	log.Printf("Assessing %d sensitive-API chunk(s) (max %d concurrent)", len(chunks), cap(a.semaphore))

	findings := make([]*models.RiskAssessment, len(chunks))
	var wg sync.WaitGroup
	errChan := make(chan error, len(chunks))

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()

			select {
			case a.semaphore <- struct{}{}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
			defer func() { <-a.semaphore }()

			assessment, err := a.generateAssessment(ctx, buildAPIPrompt(text))
			if err != nil {
				errChan <- fmt.Errorf("API chunk %d failed: %w", idx+1, err)
				return
			}
			findings[idx] = assessment
		}(i, chunk)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	report := BuildAPIReport(findings)

	summary, err := a.generateText(ctx, apiExecSystemPrompt,
		buildAPISummaryPrompt(report.Statistics, topIndicators(findings)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate executive summary: %w", err)
	}
	report.ExecutiveSummary = summary

	return report, nil
}

// BuildAPIReport aggregates per-chunk findings into the final report shell
func BuildAPIReport(findings []*models.RiskAssessment) *models.APIReport {
	report := &models.APIReport{
		Statistics: models.APIReportStats{TotalChunks: len(findings)},
	}
	for _, f := range findings {
		if f == nil {
			continue
		}
		report.DetailedFindings = append(report.DetailedFindings, *f)
		switch f.RiskLevel {
		case "high":
			report.Statistics.HighRisk++
		case "medium":
			report.Statistics.MediumRisk++
		}
	}
	return report
}

// topIndicators collects the leading indicator of each risky finding
func topIndicators(findings []*models.RiskAssessment) []string {
	var indicators []string
	for _, f := range findings {
		if f == nil {
			continue
		}
		if (f.RiskLevel == "high" || f.RiskLevel == "medium") && len(f.KeyIndicators) > 0 {
			indicators = append(indicators, f.KeyIndicators[0])
		}
	}
	return indicators
}
