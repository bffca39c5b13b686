package main

import (
	"fmt"

	"github.com/fatih/color"

	"apkscope/internal/server"
)

// consoleSender renders pipeline progress on the terminal instead of a WebSocket
type consoleSender struct {
	lastStage string
}

var (
	stageColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func newConsoleSender() *consoleSender {
	return &consoleSender{}
}

func (s *consoleSender) SendMessage(msg server.Message) {
	// Structured payloads (scan_info, analyses) are printed by the command
	// itself once the pipeline returns
}

func (s *consoleSender) SendLog(message, level string) {
	switch level {
	case "success":
		successColor.Println(message)
	case "warning":
		warningColor.Println(message)
	case "error":
		errorColor.Println(message)
	default:
		fmt.Println(message)
	}
}

func (s *consoleSender) SendProgress(percent int, stage, message string) {
	if stage != s.lastStage {
		stageColor.Printf("\n== %s ==\n", stage)
		s.lastStage = stage
	}
	fmt.Printf("[%3d%%] %s\n", percent, message)
}

func (s *consoleSender) SendError(message string, err error) {
	if err != nil {
		errorColor.Printf("%s: %v\n", message, err)
		return
	}
	errorColor.Println(message)
}
