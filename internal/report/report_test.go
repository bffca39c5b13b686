package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
	"app_name": "Demo App",
	"package_name": "com.example.demo",
	"version_name": "1.2.3",
	"md5": "d41d8cd98f00b204e9800998ecf8427e",
	"size": "4.2MB",
	"target_sdk": "33",
	"min_sdk": "21",
	"permissions": {
		"android.permission.INTERNET": {"status": "normal", "info": "full Internet access", "description": "Allows network sockets."},
		"android.permission.READ_SMS": {"status": "dangerous", "info": "read SMS", "description": "Allows reading SMS messages."},
		"android.permission.ACCESS_FINE_LOCATION": {"status": "dangerous", "info": "fine location", "description": "Allows precise location."}
	},
	"android_api": {
		"API: Get Device ID": {"files": {"com/Example/A.java": "12,44"}},
		"api: send sms": {"files": {"com/example/B.java": "7", "com/example/C.java": "3"}}
	}
}`

func TestParse(t *testing.T) {
	rep, err := Parse([]byte(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "Demo App", rep.AppName)
	assert.Equal(t, "com.example.demo", rep.PackageName)
	assert.Len(t, rep.Permissions, 3)
	assert.Len(t, rep.AndroidAPI, 2)
}

func TestParseServiceError(t *testing.T) {
	_, err := Parse([]byte(`{"error": "analysis not completed"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis not completed")
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	require.Error(t, err)
}

func TestPermissionLines(t *testing.T) {
	rep, err := Parse([]byte(sampleReport))
	require.NoError(t, err)

	lines := rep.PermissionLines()
	require.Len(t, lines, 3)

	// Sorted and rendered as bullet lines
	assert.Equal(t, "- android.permission.ACCESS_FINE_LOCATION", lines[0])
	assert.Equal(t, "- android.permission.INTERNET", lines[1])
	assert.Equal(t, "- android.permission.READ_SMS", lines[2])
}

func TestPermissionLinesEmpty(t *testing.T) {
	rep, err := Parse([]byte(`{"app_name": "x"}`))
	require.NoError(t, err)
	assert.Empty(t, rep.PermissionLines())
}

func TestAPIEntries(t *testing.T) {
	rep, err := Parse([]byte(sampleReport))
	require.NoError(t, err)

	entries := rep.APIEntries()
	require.Len(t, entries, 3)

	// Lowercased and sorted by category then path
	assert.Equal(t, APIEntry{Category: "api: get device id", Path: "com/example/a.java"}, entries[0])
	assert.Equal(t, APIEntry{Category: "api: send sms", Path: "com/example/b.java"}, entries[1])
	assert.Equal(t, APIEntry{Category: "api: send sms", Path: "com/example/c.java"}, entries[2])
}

func TestInfo(t *testing.T) {
	rep, err := Parse([]byte(sampleReport))
	require.NoError(t, err)

	info := rep.Info()
	assert.Equal(t, "Demo App", info.AppName)
	assert.Equal(t, "33", info.TargetSDK)
	assert.Equal(t, 3, info.Permissions)
}

func TestSaveAndLoad(t *testing.T) {
	rep, err := Parse([]byte(sampleReport))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, rep.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rep.PackageName, loaded.PackageName)
	assert.Len(t, loaded.Permissions, 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
