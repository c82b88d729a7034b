package logging

import (
	"bytes"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelInfo, map[string]interface{}{"run_id": "abc"})

	WithFields(map[string]interface{}{"task": "build"}).Info("task: start", map[string]interface{}{"seq": 3})

	var entry map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["lvl"])
	assert.Equal(t, "task: start", entry["msg"])
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, "build", entry["task"])
	assert.EqualValues(t, 3, entry["seq"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, LevelWarn, nil)

	Debug("hidden", nil)
	Info("hidden", nil)
	Warn("shown", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")

	SetLevel(LevelDebug)
	Debug("now shown", nil)
	assert.Contains(t, buf.String(), "now shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelWarn, ParseLevel("bogus"))
}
