package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var out bytes.Buffer
	cfg, done, err := Parse([]string{"patch.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, done)

	assert.Equal(t, "patch.hcl", cfg.PatchPath)
	assert.Equal(t, 1, cfg.Frames)
	assert.InDelta(t, 1.0/60.0, cfg.TimeStep, 1e-9)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Zero(t, cfg.MaxNodes)
	assert.Zero(t, cfg.MaxBudget)
	assert.Zero(t, cfg.CacheCapacity)
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{
		"-frames", "10",
		"-timestep", "0.5",
		"-log-format", "json",
		"-log-level", "debug",
		"-max-nodes", "100",
		"-max-millis", "250",
		"-cache-capacity", "32",
		"patch.hcl",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Frames)
	assert.InDelta(t, 0.5, cfg.TimeStep, 1e-9)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100, cfg.MaxNodes)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxBudget)
	assert.Equal(t, 32, cfg.CacheCapacity)
}

func TestParseMissingPatchPath(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse(nil, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "PATCH_PATH")
	assert.Contains(t, out.String(), "Usage:", "usage text goes to the output writer")
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	cfg, done, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "PATCH_PATH")
}

func TestParseBadFlagValue(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-frames", "lots", "patch.hcl"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseFramesTooLow(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-frames", "0", "patch.hcl"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "-frames")
}

func TestNewLogger(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, &Config{LogLevel: "info", LogFormat: "text"})
		require.NoError(t, err)
		logger.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, &Config{LogLevel: "info", LogFormat: "json"})
		require.NoError(t, err)
		logger.Info("hello")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, &Config{LogLevel: "error", LogFormat: "text"})
		require.NoError(t, err)
		logger.Info("quiet")
		assert.False(t, strings.Contains(buf.String(), "quiet"))
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := NewLogger(&bytes.Buffer{}, &Config{LogLevel: "loud"})
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewLogger(&bytes.Buffer{}, &Config{LogLevel: "info", LogFormat: "xml"})
		assert.Error(t, err)
	})
}
