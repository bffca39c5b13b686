package server

import (
	"encoding/json"
	"fmt"

	"apkscope/pkg/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server
	TypeAnalyze MessageType = "analyze" // Client requests analysis of an uploaded APK
	TypePing    MessageType = "ping"    // Keep-alive

	// Server -> Client
	TypeProgress           MessageType = "progress"            // Progress updates
	TypeLog                MessageType = "log"                 // Log messages for the terminal panel
	TypeScanInfo           MessageType = "scan_info"           // App metadata from the static report
	TypePermissionAnalysis MessageType = "permission_analysis" // Permission executive summary
	TypeAPIAnalysis        MessageType = "api_analysis"        // Sensitive-API risk report
	TypeComplete           MessageType = "complete"            // Analysis complete
	TypeError              MessageType = "error"               // Error message
)

// Message is the base WebSocket message structure
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AnalyzePayload sent by client to start analysis of a staged upload
type AnalyzePayload struct {
	UploadID string `json:"upload_id"`
}

// ProgressPayload for progress bar updates
type ProgressPayload struct {
	Percent int    `json:"percent"` // 0-100
	Stage   string `json:"stage"`   // "static", "match", "permissions", "apis", "report"
	Message string `json:"message"` // Human-readable status
}

// LogPayload for terminal output
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
}

// ScanInfoPayload carries the app metadata once the report is parsed
type ScanInfoPayload struct {
	Info *models.ScanInfo `json:"info"`
}

// PermissionAnalysisPayload carries the permission executive summary
type PermissionAnalysisPayload struct {
	Summary string `json:"summary"`
}

// APIAnalysisPayload carries the sensitive-API risk report
type APIAnalysisPayload struct {
	Report *models.APIReport `json:"report"`
}

// CompletePayload sent when analysis is done
type CompletePayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Helper functions to create messages

func NewProgressMessage(percent int, stage, message string) Message {
	payload := ProgressPayload{
		Percent: percent,
		Stage:   stage,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeProgress, Payload: payloadBytes}
}

func NewLogMessage(message, level string) Message {
	payload := LogPayload{
		Message: message,
		Level:   level,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeLog, Payload: payloadBytes}
}

func NewScanInfoMessage(info *models.ScanInfo) Message {
	payload := ScanInfoPayload{Info: info}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeScanInfo, Payload: payloadBytes}
}

func NewPermissionAnalysisMessage(summary string) Message {
	payload := PermissionAnalysisPayload{Summary: summary}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypePermissionAnalysis, Payload: payloadBytes}
}

func NewAPIAnalysisMessage(report *models.APIReport) Message {
	payload := APIAnalysisPayload{Report: report}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeAPIAnalysis, Payload: payloadBytes}
}

func NewCompleteMessage(success bool, message string) Message {
	payload := CompletePayload{
		Success: success,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeComplete, Payload: payloadBytes}
}

func NewErrorMessage(message string, err error) Message {
	errMsg := message
	if err != nil {
		errMsg = fmt.Sprintf("%s: %v", message, err)
	}
	payload := ErrorPayload{Message: errMsg}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeError, Payload: payloadBytes}
}

// ParseAnalyzePayload extracts the analyze payload from a message
func ParseAnalyzePayload(msg Message) (*AnalyzePayload, error) {
	var payload AnalyzePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analyze payload: %w", err)
	}
	if payload.UploadID == "" {
		return nil, fmt.Errorf("upload_id is required")
	}
	return &payload, nil
}
