package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicflow/civicflow/internal/config"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level config.LogLevel
		debug bool
		want  slog.Level
	}{
		{config.LogLevelInfo, false, slog.LevelInfo},
		{config.LogLevelWarn, false, slog.LevelWarn},
		{config.LogLevelError, false, slog.LevelError},
		{config.LogLevelDebug, false, slog.LevelDebug},
		{config.LogLevelError, true, slog.LevelDebug},
		{"", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logLevel(tt.level, tt.debug), "level=%q debug=%v", tt.level, tt.debug)
	}
}

func TestNewLogger_FallbackWriter(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = ""

	var buf bytes.Buffer
	logger, closeLog, err := newLogger(cfg, false, &buf)
	require.NoError(t, err)
	defer closeLog()

	logger.Debug("hidden")
	logger.Info("complaint routed", "department", "Public Works")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "department=\"Public Works\"")
}

func TestClusterSettings(t *testing.T) {
	got := clusterSettings(config.Default().Cluster)

	assert.Equal(t, 7*24*time.Hour, got.Lookback)
	assert.Equal(t, 2, got.MinSize)
	assert.Equal(t, 2, got.Precision)
	assert.Equal(t, 48*time.Hour, got.SLA)
	assert.InDelta(t, 0.7, got.CostFactor, 1e-9)
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"serve", "console", "migrate", "seed", "backfill", "sla-scan", "cluster", "briefing", "doctor", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, sub := range []string{"up", "down", "status"} {
		cmd, _, err := rootCmd.Find([]string{"migrate", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, cmd.Name())
	}

	assert.NotNil(t, seedCmd.Flags().Lookup("demo"))
	assert.NotNil(t, doctorCmd.Flags().Lookup("reconcile"))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "CivicFlow version dev")
}
