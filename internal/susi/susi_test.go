package susi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apkscope/internal/report"
)

const sampleSources = `<android.telephony.TelephonyManager: java.lang.String getDeviceId()> (UNIQUE_IDENTIFIER)
<android.location.LocationManager: android.location.Location getLastKnownLocation(java.lang.String)> (LOCATION_INFORMATION)
not a signature line
<java.util.Calendar: int get(int)> (CALENDAR_INFORMATION)
`

const sampleSinks = `<android.telephony.SmsManager: void sendTextMessage(java.lang.String,java.lang.String,java.lang.String,android.app.PendingIntent,android.app.PendingIntent)> (SMS_MMS)
<java.net.URL: java.net.URLConnection openConnection()> (NETWORK)
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSignatures(t *testing.T) {
	path := writeTempFile(t, "sources.txt", sampleSources)

	methods, err := ParseSignatures(path, KindSource)
	require.NoError(t, err)

	assert.Equal(t, KindSource, methods["getdeviceid"])
	assert.Equal(t, KindSource, methods["getlastknownlocation"])

	// "get" is too short to be a useful match
	_, ok := methods["get"]
	assert.False(t, ok)
	assert.Len(t, methods, 2)
}

func TestParseSignaturesMissingFile(t *testing.T) {
	methods, err := ParseSignatures(filepath.Join(t.TempDir(), "missing.txt"), KindSink)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestLoadMethods(t *testing.T) {
	sources := writeTempFile(t, "sources.txt", sampleSources)
	sinks := writeTempFile(t, "sinks.txt", sampleSinks)

	methods, err := LoadMethods(sources, sinks)
	require.NoError(t, err)

	assert.Equal(t, KindSource, methods["getdeviceid"])
	assert.Equal(t, KindSink, methods["sendtextmessage"])
	assert.Equal(t, KindSink, methods["openconnection"])
	assert.Len(t, methods, 4)
}

func TestLoadMethodsSinkWins(t *testing.T) {
	// A method listed in both files counts as a sink
	sources := writeTempFile(t, "sources.txt",
		"<a.B: void writeBytes(byte[])> (SHARED)\n")
	sinks := writeTempFile(t, "sinks.txt",
		"<c.D: void writeBytes(byte[])> (SHARED)\n")

	methods, err := LoadMethods(sources, sinks)
	require.NoError(t, err)
	assert.Equal(t, KindSink, methods["writebytes"])
}

func TestMatchEntries(t *testing.T) {
	methods := MethodSet{
		"getdeviceid":     KindSource,
		"sendtextmessage": KindSink,
	}

	entries := []report.APIEntry{
		{Category: "api: getdeviceid usage", Path: "com/example/a.java"},
		{Category: "telephony", Path: "com/example/sendtextmessage_helper.java"},
		{Category: "harmless", Path: "com/example/ui.java"},
	}

	matches := MatchEntries(entries, methods)
	require.Len(t, matches, 2)

	kinds := map[Kind]int{}
	for _, m := range matches {
		kinds[m.Kind]++
	}
	assert.Equal(t, 1, kinds[KindSource])
	assert.Equal(t, 1, kinds[KindSink])
}

func TestSummarize(t *testing.T) {
	matches := []Match{
		{Kind: KindSource, Category: "identifiers", Path: "a.java"},
		{Kind: KindSource, Category: "identifiers", Path: "a.java"},
		{Kind: KindSink, Category: "identifiers", Path: "a.java"},
		{Kind: KindSink, Category: "network", Path: "b.java"},
	}

	stats := Summarize(matches)
	require.Len(t, stats, 2)

	// Sorted by category then path
	assert.Equal(t, FileStats{Category: "identifiers", Path: "a.java", Sources: 2, Sinks: 1}, stats[0])
	assert.Equal(t, FileStats{Category: "network", Path: "b.java", Sources: 0, Sinks: 1}, stats[1])
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}

func TestRenderSummary(t *testing.T) {
	stats := []FileStats{
		{Category: "network", Path: "b.java", Sources: 0, Sinks: 3},
	}

	lines := RenderSummary(stats)
	require.Len(t, lines, 1)
	assert.Equal(t, "- File: b.java | Category: network -> Sources: 0, Sinks: 3", lines[0])
}

func TestWriteSummary(t *testing.T) {
	stats := []FileStats{
		{Category: "identifiers", Path: "a.java", Sources: 2, Sinks: 1},
		{Category: "network", Path: "b.java", Sources: 0, Sinks: 3},
	}

	path := filepath.Join(t.TempDir(), "summary.txt")
	require.NoError(t, WriteSummary(stats, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a.java")
}
