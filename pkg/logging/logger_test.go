package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempDir points file loggers at a temporary directory and restores the
// package state afterwards.
func useTempDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	origLogDir, origInitErr := logDir, initErr
	origSessionID := sessionID
	initOnce = sync.Once{}
	sessionIDOnce = sync.Once{}
	sessionID = ""
	initErr = nil

	SetDirectory(dir)

	t.Cleanup(func() {
		logDir, initErr = origLogDir, origInitErr
		sessionID = origSessionID
		initOnce = sync.Once{}
		sessionIDOnce = sync.Once{}
	})
	return dir
}

func TestNewLogger_WritesSessionFile(t *testing.T) {
	dir := useTempDir(t)

	logger, err := NewLogger("annotator")
	require.NoError(t, err)
	defer logger.Close()

	logger.Infof("scanned %d containers", 2)

	assert.Equal(t, dir, filepath.Dir(logger.LogPath()))
	assert.True(t, strings.HasSuffix(logger.LogPath(), logger.SessionID()+"-bugson.log"))

	data, err := os.ReadFile(logger.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[annotator] [INFO] scanned 2 containers")
}

func TestNewLogger_SharedSession(t *testing.T) {
	useTempDir(t)

	a, err := NewLogger("a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewLogger("b")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.SessionID(), b.SessionID())
	assert.Equal(t, a.LogPath(), b.LogPath())
}

func TestLevelFiltering(t *testing.T) {
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	logger := NewWriterLogger("bus", &buf)

	SetLevel(LevelWarn)
	logger.Debugf("hidden")
	logger.Infof("hidden")
	logger.Warnf("shown warn")
	logger.Errorf("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	useTempDir(t)

	logger, err := NewLogger("x")
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())

	assert.NoError(t, Discard("y").Close())
}
