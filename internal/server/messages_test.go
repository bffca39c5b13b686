package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apkscope/pkg/models"
)

func TestNewProgressMessage(t *testing.T) {
	msg := NewProgressMessage(45, "match", "Matching sensitive-API dataset...")
	assert.Equal(t, TypeProgress, msg.Type)

	var payload ProgressPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, 45, payload.Percent)
	assert.Equal(t, "match", payload.Stage)
}

func TestNewScanInfoMessage(t *testing.T) {
	info := &models.ScanInfo{AppName: "Demo", PackageName: "com.example.demo"}
	msg := NewScanInfoMessage(info)
	assert.Equal(t, TypeScanInfo, msg.Type)

	var payload ScanInfoPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "Demo", payload.Info.AppName)
}

func TestNewAPIAnalysisMessage(t *testing.T) {
	report := &models.APIReport{
		Statistics:       models.APIReportStats{TotalChunks: 1, HighRisk: 1},
		ExecutiveSummary: "risky",
	}
	msg := NewAPIAnalysisMessage(report)
	assert.Equal(t, TypeAPIAnalysis, msg.Type)

	var payload APIAnalysisPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, 1, payload.Report.Statistics.HighRisk)
	assert.Equal(t, "risky", payload.Report.ExecutiveSummary)
}

func TestNewErrorMessageWrapsError(t *testing.T) {
	msg := NewErrorMessage("analysis failed", assert.AnError)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Contains(t, payload.Message, "analysis failed: ")
}

func TestParseAnalyzePayload(t *testing.T) {
	raw, _ := json.Marshal(AnalyzePayload{UploadID: "id-1"})
	payload, err := ParseAnalyzePayload(Message{Type: TypeAnalyze, Payload: raw})
	require.NoError(t, err)
	assert.Equal(t, "id-1", payload.UploadID)
}

func TestParseAnalyzePayloadMissingID(t *testing.T) {
	raw, _ := json.Marshal(AnalyzePayload{})
	_, err := ParseAnalyzePayload(Message{Type: TypeAnalyze, Payload: raw})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_id")
}
