package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifold.toml")
	content := `
[engine]
debug = true
fixed_update_hz = 30.0

[logging]
level = "debug"
format = "json"

[scripts]
dir = "scripts"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Engine.Debug)
	require.Equal(t, 30.0, cfg.Engine.FixedUpdateHz)
	// Untouched sections keep their defaults
	require.True(t, cfg.Engine.EnableProxyTracking)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "scripts", cfg.Scripts.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine\ndebug ="), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestNewLoggerFallbackLevel(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "nonsense", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)
}
