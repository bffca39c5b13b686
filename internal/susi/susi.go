package susi

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"apkscope/internal/report"
)

// Kind classifies a SuSi method as a data source or sink
type Kind string

const (
	KindSource Kind = "source"
	KindSink   Kind = "sink"
)

// signatureRe extracts the method name from a Soot-style signature line,
// e.g. <android.telephony.TelephonyManager: java.lang.String getDeviceId()>
var signatureRe = regexp.MustCompile(`<(.+?):\s.*?\s(\w+)\(.*\)>`)

// MethodSet maps lowercased method names to their kind
type MethodSet map[string]Kind

// ParseSignatures reads a SuSi signature file and returns the method names it
// declares. A missing file yields an empty set rather than an error so a
// partial dataset still produces results.
func ParseSignatures(path string, kind Kind) (MethodSet, error) {
	methods := make(MethodSet)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return methods, nil
		}
		return nil, fmt.Errorf("failed to open signature file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "<") || !strings.Contains(line, ">") {
			continue
		}
		m := signatureRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[2])
		// Very short names like "do" or "is" match everything
		if len(name) > 2 {
			methods[name] = kind
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signature file: %w", err)
	}

	return methods, nil
}

// LoadMethods parses both dataset files and merges them. Sinks are loaded
// after sources, so a method listed in both files counts as a sink.
func LoadMethods(sourcesPath, sinksPath string) (MethodSet, error) {
	methods, err := ParseSignatures(sourcesPath, KindSource)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	sinks, err := ParseSignatures(sinksPath, KindSink)
	if err != nil {
		return nil, fmt.Errorf("failed to load sinks: %w", err)
	}
	for name, kind := range sinks {
		methods[name] = kind
	}

	return methods, nil
}

// Match pairs a SuSi method with the report entry it was found in
type Match struct {
	Kind     Kind
	Category string
	Path     string
}

// MatchEntries fuzzy-matches method names against each entry's category and
// file path. Entries and method names are already lowercased.
func MatchEntries(entries []report.APIEntry, methods MethodSet) []Match {
	var matches []Match
	for _, entry := range entries {
		for name, kind := range methods {
			if strings.Contains(entry.Category, name) || strings.Contains(entry.Path, name) {
				matches = append(matches, Match{Kind: kind, Category: entry.Category, Path: entry.Path})
			}
		}
	}
	return matches
}

// FileStats aggregates source/sink hits for one (category, path) pair
type FileStats struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	Sources  int    `json:"sources"`
	Sinks    int    `json:"sinks"`
}

// Summarize aggregates matches per (category, path), sorted for stable output
func Summarize(matches []Match) []FileStats {
	type key struct{ category, path string }
	counts := make(map[key]*FileStats)

	for _, m := range matches {
		k := key{m.Category, m.Path}
		stats, ok := counts[k]
		if !ok {
			stats = &FileStats{Category: m.Category, Path: m.Path}
			counts[k] = stats
		}
		switch m.Kind {
		case KindSource:
			stats.Sources++
		case KindSink:
			stats.Sinks++
		}
	}

	result := make([]FileStats, 0, len(counts))
	for _, stats := range counts {
		if stats.Sources > 0 || stats.Sinks > 0 {
			result = append(result, *stats)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Path < result[j].Path
	})
	return result
}

// RenderSummary formats the aggregated stats as the suspicious-summary lines
// consumed by the LLM risk assessment
func RenderSummary(stats []FileStats) []string {
	lines := make([]string, len(stats))
	for i, s := range stats {
		lines[i] = fmt.Sprintf("- File: %s | Category: %s -> Sources: %d, Sinks: %d",
			s.Path, s.Category, s.Sources, s.Sinks)
	}
	return lines
}

// WriteSummary writes the rendered summary to disk, one line per finding
func WriteSummary(stats []FileStats, path string) error {
	lines := RenderSummary(stats)
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
