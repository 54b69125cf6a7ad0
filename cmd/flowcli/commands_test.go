package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

// offlineEnv disables the model and the trace store so commands run without network.
func offlineEnv(t *testing.T) {
	t.Helper()
	color.NoColor = true
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ALFRED_DB_PATH", "")
	t.Setenv("RESEND_API_KEY", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestProcessCommand_JSON(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "process", "--fake-calendar", "--json", "--sender", "s1", "Book", "a", "meeting")
	require.NoError(t, err)

	var res resultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Book a meeting", res.Message)
	assert.Equal(t, "UNRELATED", res.Category)
	assert.Equal(t, []string{"Routing", "Unrelated", "Responding", "Terminal"}, res.Path)
	assert.Equal(t, i18n.Default().Text(i18n.MsgUnrelated, i18n.English), res.Response)
	assert.NotEmpty(t, res.Error)
}

func TestProcessCommand_RequiresMessage(t *testing.T) {
	offlineEnv(t)
	_, err := execute(t, "process")
	assert.Error(t, err)
}

func TestDemoCommand(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "demo", "--fake-calendar")
	require.NoError(t, err)

	assert.Contains(t, out, "APPOINTMENT FLOW DEMO")
	for _, msg := range demoMessages {
		assert.Contains(t, out, "📨 Message: "+msg)
	}
	assert.Equal(t, len(demoMessages), strings.Count(out, "✅ FINAL RESPONSE:"))
}

func TestTracesCommand(t *testing.T) {
	offlineEnv(t)

	t.Run("disabled without database", func(t *testing.T) {
		_, err := execute(t, "traces")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ALFRED_DB_PATH")
	})

	t.Run("lists recorded requests", func(t *testing.T) {
		t.Setenv("ALFRED_DB_PATH", filepath.Join(t.TempDir(), "traces.db"))

		_, err := execute(t, "process", "--fake-calendar", "hello there")
		require.NoError(t, err)

		out, err := execute(t, "traces", "--json")
		require.NoError(t, err)

		var traces []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &traces))
		require.Len(t, traces, 1)
		assert.Equal(t, "UNRELATED", traces[0]["category"])
		assert.Equal(t, "llm_not_configured", traces[0]["error_kind"])
	})
}

func TestCalendarCommand_MissingCredentials(t *testing.T) {
	offlineEnv(t)
	t.Setenv("GOOGLE_CALENDAR_CREDENTIALS", "")
	t.Setenv("GOOGLE_CALENDAR_CREDENTIALS_PATH", filepath.Join(t.TempDir(), "missing.json"))

	_, err := execute(t, "calendar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build calendar client")
	assert.Contains(t, err.Error(), "missing.json")
}
