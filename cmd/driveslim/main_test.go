package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath_FollowsDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "custom-data")
	assert.Equal(t, filepath.Join(dataDir, "logs", "driveslim.log"), logFilePath(dataDir))
}

func TestSetupLogging_CreatesFileUnderDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "relocated")

	require.NoError(t, setupLogging(dataDir))
	t.Cleanup(func() { logFile.Close() })

	assert.FileExists(t, logFilePath(dataDir))
}
