package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"apkscope/pkg/models"
)

// Permission is a single declared permission from the static-analysis report
type Permission struct {
	Status      string `json:"status"`
	Info        string `json:"info"`
	Description string `json:"description"`
}

// APICategory groups the files where an Android API category was observed
type APICategory struct {
	Metadata string            `json:"metadata,omitempty"`
	Files    map[string]string `json:"files"` // file path -> line numbers
}

// Report is the subset of the MobSF JSON report this tool consumes
type Report struct {
	Error       string                 `json:"error,omitempty"`
	AppName     string                 `json:"app_name"`
	PackageName string                 `json:"package_name"`
	VersionName string                 `json:"version_name"`
	MD5         string                 `json:"md5"`
	Size        string                 `json:"size"`
	TargetSDK   string                 `json:"target_sdk"`
	MinSDK      string                 `json:"min_sdk"`
	Permissions map[string]Permission  `json:"permissions"`
	AndroidAPI  map[string]APICategory `json:"android_api"`
}

// APIEntry is a flattened (category, file) pair from the android_api section
type APIEntry struct {
	Category string
	Path     string
}

// Parse decodes a raw report and rejects service-level errors
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report JSON: %w", err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("report contains error: %s", r.Error)
	}
	return &r, nil
}

// Load reads and parses a report file from disk
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return Parse(data)
}

// Save writes the report to disk as indented JSON
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Info extracts the app metadata for display
func (r *Report) Info() *models.ScanInfo {
	return &models.ScanInfo{
		AppName:     r.AppName,
		PackageName: r.PackageName,
		VersionName: r.VersionName,
		MD5:         r.MD5,
		Size:        r.Size,
		TargetSDK:   r.TargetSDK,
		MinSDK:      r.MinSDK,
		Permissions: len(r.Permissions),
	}
}

// PermissionLines returns the declared permission names as sorted bullet lines
func (r *Report) PermissionLines() []string {
	names := make([]string, 0, len(r.Permissions))
	for name := range r.Permissions {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = "- " + name
	}
	return lines
}

// APIEntries flattens the android_api section into lowercased (category, path)
// pairs, sorted for deterministic downstream matching
func (r *Report) APIEntries() []APIEntry {
	var entries []APIEntry
	for category, detail := range r.AndroidAPI {
		for path := range detail.Files {
			entries = append(entries, APIEntry{
				Category: strings.ToLower(category),
				Path:     strings.ToLower(path),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}
