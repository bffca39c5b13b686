package models

// ScanInfo holds the app metadata shown in the UI after static analysis
type ScanInfo struct {
	AppName     string `json:"app_name"`
	PackageName string `json:"package_name"`
	VersionName string `json:"version_name"`
	MD5         string `json:"md5"`
	Size        string `json:"size"`
	TargetSDK   string `json:"target_sdk"`
	MinSDK      string `json:"min_sdk"`
	Permissions int    `json:"permission_count"`
}

// RiskAssessment is the structured per-chunk verdict from the LLM
type RiskAssessment struct {
	RiskLevel     string   `json:"risk_level"` // "low", "medium", "high"
	RiskType      []string `json:"risk_type"`
	KeyIndicators []string `json:"key_indicators"`
	Summary       string   `json:"summary"`
	NextSteps     []string `json:"next_steps"`
}

// APIReportStats counts assessments by risk level
type APIReportStats struct {
	TotalChunks int `json:"total_chunks"`
	HighRisk    int `json:"high_risk"`
	MediumRisk  int `json:"medium_risk"`
}

// APIReport is the final sensitive-API analysis artifact (malware_report.json)
type APIReport struct {
	Statistics       APIReportStats   `json:"statistics"`
	DetailedFindings []RiskAssessment `json:"detailed_findings"`
	ExecutiveSummary string           `json:"executive_summary"`
}

// AnalysisResult bundles both summaries plus the artifact locations
type AnalysisResult struct {
	Info              *ScanInfo  `json:"info"`
	PermissionSummary string     `json:"permission_summary"`
	APIReport         *APIReport `json:"api_report"`
	ReportPath        string     `json:"report_path,omitempty"`
	SummaryPath       string     `json:"summary_path,omitempty"`
	APIReportPath     string     `json:"api_report_path,omitempty"`
}
