package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_FansOutToStderrAndFile(t *testing.T) {
	var stderr bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "vinyasa.log")

	logger, closer, err := New(Options{Level: "info", Stderr: &stderr, LogFile: logFile})
	require.NoError(t, err)

	logger.Info("sequence generated", "poses", 12)
	logger.Debug("hidden at info level")
	require.NoError(t, closer.Close())

	require.Contains(t, stderr.String(), "sequence generated")
	require.NotContains(t, stderr.String(), "hidden at info level")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "sequence generated", entry["msg"])
	require.Equal(t, float64(12), entry["poses"])
}

func TestNew_NoFile(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Stderr: &stderr})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	logger.Info("dropped")
	logger.Warn("kept")
	require.NotContains(t, stderr.String(), "dropped")
	require.Contains(t, stderr.String(), "kept")
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))
	l := slog.Default()
	require.Same(t, l, OrDiscard(l))
}
