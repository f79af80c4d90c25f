package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, runtime.NumCPU(), cfg.Loading.DecodeWorkers)
	assert.InDelta(t, 10.0, cfg.Structures.GroupGapMM, 1e-9)
	assert.InDelta(t, 0.01, cfg.Structures.DedupDepthTolMM, 1e-9)
	assert.InDelta(t, 1.0, cfg.Structures.DuplicateRadiusMM, 1e-9)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
loading:
  decodeWorkers: 2
structures:
  groupGapMM: 15.5
logging:
  level: DEBUG
  file: /var/log/mprview.log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Loading.DecodeWorkers)
	assert.InDelta(t, 15.5, cfg.Structures.GroupGapMM, 1e-9)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.01, cfg.Structures.DedupDepthTolMM, 1e-9)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "/var/log/mprview.log", cfg.Logging.File)
}

func TestLoad_InvalidWorkerCountFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("loading:\n  decodeWorkers: -3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Loading.DecodeWorkers)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("loading: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
