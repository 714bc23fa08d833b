package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(INFO)
	})
	return &buf
}

func TestLogWritesJSONEntry(t *testing.T) {
	buf := captureLogs(t)

	Info("generation finished", "dataset", "educ", "year", 2022, "success", true,
		"error", errors.New("exit status 1"), "took", 1500*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "generation finished", entry["msg"])
	assert.Equal(t, "educ", entry["dataset"])
	assert.Equal(t, 2022.0, entry["year"])
	assert.Equal(t, true, entry["success"])
	assert.Equal(t, "exit status 1", entry["error"])
	assert.Equal(t, "1.5s", entry["took"])
}

func TestWithCarriesFields(t *testing.T) {
	buf := captureLogs(t)

	run := With("run_id", "abc", "dataset", "educ")
	run.Info("generation started", "year", "2022")
	run.With("attempt", 2).Warn("retry")
	Info("unrelated")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var first, second, third map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.NoError(t, json.Unmarshal(lines[2], &third))

	assert.Equal(t, "abc", first["run_id"])
	assert.Equal(t, "2022", first["year"])
	assert.Equal(t, "educ", second["dataset"])
	assert.Equal(t, 2.0, second["attempt"])
	assert.Equal(t, "WARN", second["level"])
	assert.NotContains(t, third, "run_id")
}

func TestDanglingKeyIsKept(t *testing.T) {
	buf := captureLogs(t)

	Info("odd fields", "dataset", "educ", "orphan")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "orphan")
	assert.Nil(t, entry["orphan"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t)
	SetLevel(WARN)

	Debug("hidden")
	Info("hidden")
	Warn("shown")

	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestEmailRedaction(t *testing.T) {
	buf := captureLogs(t)

	Info("admin lookup", "email", "marie.dupont@orsg-ctps.fr", "note", "contact jp@orsg-ctps.fr",
		"error", errors.New("no such user paul.durand@orsg.fr"))

	out := buf.String()
	assert.Contains(t, out, "ma***@orsg-ctps.fr")
	assert.Contains(t, out, "***@orsg-ctps.fr")
	assert.NotContains(t, out, "marie.dupont@")
	assert.Contains(t, out, "pa***@orsg.fr")
	assert.NotContains(t, out, "paul.durand@")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "so***@orsg-ctps.fr", RedactEmail("sophie.bernard@orsg-ctps.fr"))
	assert.Equal(t, "***@orsg-ctps.fr", RedactEmail("jp@orsg-ctps.fr"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
