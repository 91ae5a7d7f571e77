package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/codebox/internal/config"
	"github.com/p-arndt/codebox/internal/store"
)

func TestNewLogger_Levels(t *testing.T) {
	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "WARN"})
	require.NoError(t, err)
	defer closeLog()
	assert.NotNil(t, logger)

	_, _, err = newLogger(config.LoggingConfig{Level: "chatty"})
	assert.ErrorContains(t, err, "logging level")
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebox.log")
	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	logger.Info("session created", "session_id", "1a2b3c4d5e6f")
	logger.Debug("not written")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_id=1a2b3c4d5e6f")
	assert.NotContains(t, string(data), "not written")
}

func TestPrintBuilds(t *testing.T) {
	st, err := store.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	var buf bytes.Buffer
	require.NoError(t, printBuilds(st, &buf))
	assert.Equal(t, "no image builds recorded\n", buf.String())

	require.NoError(t, st.RecordImageBuild(&store.ImageBuild{
		Image:       "python-sandbox:latest",
		Fingerprint: "0123456789abcdef0123456789abcdef",
		RecipePath:  "Dockerfile",
		BuiltAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}))

	buf.Reset()
	require.NoError(t, printBuilds(st, &buf))
	assert.Equal(t, "python-sandbox:latest\t2026-01-02T03:04:05Z\t0123456789abcdef\tDockerfile\n", buf.String())
}
