package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apkscope/pkg/models"
)

func TestChunkLines(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		size     int
		expected int
	}{
		{"empty", nil, 10, 0},
		{"single chunk", []string{"a", "b", "c"}, 10, 1},
		{"exact fit", []string{"a", "b", "c", "d"}, 2, 2},
		{"remainder", []string{"a", "b", "c", "d", "e"}, 2, 3},
		{"invalid size", []string{"a"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkLines(tt.lines, tt.size)
			assert.Len(t, chunks, tt.expected)
		})
	}
}

func TestChunkLinesContent(t *testing.T) {
	chunks := ChunkLines([]string{"- A", "- B", "- C"}, 2)
	require.Len(t, chunks, 2)

	assert.Equal(t, "- A\n- B", chunks[0])
	assert.Equal(t, "- C", chunks[1])
}

func TestBuildAPIReport(t *testing.T) {
	findings := []*models.RiskAssessment{
		{RiskLevel: "high", KeyIndicators: []string{"DexClassLoader with encrypted path"}},
		{RiskLevel: "medium", KeyIndicators: []string{"SMS read and send together"}},
		{RiskLevel: "low"},
		nil,
	}

	report := BuildAPIReport(findings)
	assert.Equal(t, 4, report.Statistics.TotalChunks)
	assert.Equal(t, 1, report.Statistics.HighRisk)
	assert.Equal(t, 1, report.Statistics.MediumRisk)
	assert.Len(t, report.DetailedFindings, 3)
}

func TestTopIndicators(t *testing.T) {
	findings := []*models.RiskAssessment{
		{RiskLevel: "high", KeyIndicators: []string{"first", "second"}},
		{RiskLevel: "low", KeyIndicators: []string{"ignored"}},
		{RiskLevel: "medium", KeyIndicators: []string{"third"}},
		{RiskLevel: "high"}, // no indicators
	}

	indicators := topIndicators(findings)
	assert.Equal(t, []string{"first", "third"}, indicators)
}

func TestNewAnalyzerRequiresKey(t *testing.T) {
	_, err := NewAnalyzer("", "", "", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestBuildPermissionPrompt(t *testing.T) {
	prompt := buildPermissionPrompt("- android.permission.INTERNET")
	assert.Contains(t, prompt, "android.permission.INTERNET")
	assert.Contains(t, prompt, "risky combinations")
}

func TestBuildAPISummaryPrompt(t *testing.T) {
	stats := models.APIReportStats{TotalChunks: 2, HighRisk: 1}
	prompt := buildAPISummaryPrompt(stats, []string{"indicator one", "indicator two"})

	assert.Contains(t, prompt, `"total_chunks": 2`)
	assert.True(t, strings.Contains(prompt, "indicator one"))
	assert.Contains(t, prompt, "2 suggestions for further manual review")
}
