package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultBind, cfg.Server.Bind)
	require.Equal(t, DefaultCommandTimeout, cfg.Compose.CommandTimeout)
	require.Equal(t, "http://localhost:8000", cfg.Chat.ServiceEndpoints["master"])
}

func TestLoadMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  bind: "127.0.0.1:9000"
compose:
  command_timeout: 10s
chat:
  default_model: gpt-4o
  service_endpoints:
    master: "http://master:8000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Bind)
	require.Equal(t, 10*time.Second, cfg.Compose.CommandTimeout)
	require.Equal(t, "gpt-4o", cfg.Chat.DefaultModel)
	require.Equal(t, "http://master:8000", cfg.Chat.ServiceEndpoints["master"])
	// Untouched entries keep defaults.
	require.Equal(t, "http://localhost:8001", cfg.Chat.ServiceEndpoints["image-generator"])
	require.Equal(t, DefaultSettingsFile, cfg.Settings.Path)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
