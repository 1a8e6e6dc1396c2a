package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, ":8080", GetListenAddr())
	assert.Equal(t, "webm", GetDocType())
	assert.Equal(t, time.Second, GetMinClusterDuration())
	assert.Empty(t, GetWritingApp())
	assert.NotEmpty(t, GetMkvmuxHome())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MKVMUX_LISTEN_ADDR", ":9090")
	t.Setenv("MKVMUX_DOCTYPE", "matroska")
	t.Setenv("MKVMUX_MIN_CLUSTER_DURATION", "250ms")
	t.Setenv("MKVMUX_WRITING_APP", "recorder")

	assert.Equal(t, ":9090", GetListenAddr())
	assert.Equal(t, "matroska", GetDocType())
	assert.Equal(t, 250*time.Millisecond, GetMinClusterDuration())
	assert.Equal(t, "recorder", GetWritingApp())
}

func TestPresetPathResolution(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MKVMUX_HOME", home)
	assert.Equal(t, filepath.Join(home, "presets.toml"), GetPresetPath())

	explicit := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv("MKVMUX_PRESET_PATH", explicit)
	assert.Equal(t, explicit, GetPresetPath())
}
