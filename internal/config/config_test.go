package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 55005, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JDWP_MCP_HOST", "debug.internal")
	t.Setenv("JDWP_MCP_PORT", "8000")
	t.Setenv("JDWP_MCP_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug.internal", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	content := "host: jvm.test\nport: 9009\ntimeout: 5s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jdwp-mcp.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jvm.test", cfg.Host)
	assert.Equal(t, 9009, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jdwp-mcp.yaml"), []byte("port: 9009\n"), 0o644))
	t.Setenv("JDWP_MCP_PORT", "7007")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7007, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Host: "localhost", Port: 55005, Timeout: time.Second}, ""},
		{"port zero", Config{Port: 0, Timeout: time.Second}, "invalid port"},
		{"port too large", Config{Port: 70000, Timeout: time.Second}, "invalid port"},
		{"zero timeout", Config{Port: 55005}, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// chdirTemp isolates a test from any jdwp-mcp.yaml in the repo or home.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}
