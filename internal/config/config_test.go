package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chibaminto/compactalarm/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: sqlite\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.NotEmpty(t, cfg.Store.Path)
	require.Equal(t, 5, cfg.Ring.SnoozeMinutes)
	require.Equal(t, 3, cfg.Ring.AutoStopMinutes)
	require.Equal(t, 30, cfg.Ring.FadeInSeconds)
	require.Equal(t, 60, cfg.Ring.FadeInSteps)
	require.Equal(t, []int{0, 1000, 500}, cfg.Ring.VibrationPatternMS)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ALARM_STATE_PATH", "/var/lib/alarms.json")
	path := writeConfig(t, "store:\n  path: ${ALARM_STATE_PATH}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/alarms.json", cfg.Store.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad backend", "store:\n  backend: redis\n"},
		{"zero steps", "ring:\n  fade_in_steps: -1\n"},
		{"negative pattern", "ring:\n  vibration_pattern_ms: [0, -5]\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad level", "logging:\n  level: verbose\n"},
		{"not yaml", "{{{{\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			require.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))

	require.NoError(t, Init(path, true))

	// The generated example must load cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "nats://localhost:4222", cfg.Bridge.NATSURL)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
}
