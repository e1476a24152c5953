package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
notify:
  backend: local
scanner:
  interval_seconds: 60
  proximity_km: 5
handshake:
  qr_secret: super-secret
metrics:
  sink: nop
store:
  backend: sqlite
  path: /tmp/absorb-test.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, 5.0, cfg.Scanner.ProximityKm)
	// Unset fields fall back to defaults.
	assert.Equal(t, 60, cfg.Scanner.TTLMinutes)
	assert.Equal(t, 300.0, cfg.Allocator.LongHaulKm)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "super-secret", cfg.Handshake.QRSecret)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "handshake": {"qr_secret": "s"},
  "allocator": {"long_haul_km": 250, "experience_km": 400}
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250.0, cfg.Allocator.LongHaulKm)
	assert.Equal(t, 400.0, cfg.Allocator.ExperienceKm)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
handshake:
  qr_secret: from-file
`)
	t.Setenv("AB_HANDSHAKE__QR_SECRET", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Handshake.QRSecret)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
scanner:
  interval_seconds: 60
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	_, err := Load(path)
	assert.Error(t, err)
}
