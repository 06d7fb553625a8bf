package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100000, cfg.Split.ChunkSize)
	assert.Equal(t, "prg-ad:PRG_PunktAdresowy", cfg.Split.RecordTag)
	assert.Equal(t, "", cfg.Split.TempDir)
	assert.Equal(t, 10000, cfg.Load.BatchSize)
	assert.Equal(t, 4, cfg.Load.Concurrency)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "prg", cfg.DB.Name)
	assert.Equal(t, "prefer", cfg.DB.SSLMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
split:
  chunk_size: 50000
  record_tag: "prg-ad:PRG_PunktAdresowy"
load:
  batch_size: 2000
  concurrency: 8
db:
  port: 5433
  name: addresses
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50000, cfg.Split.ChunkSize)
	assert.Equal(t, 2000, cfg.Load.BatchSize)
	assert.Equal(t, 8, cfg.Load.Concurrency)
	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, "addresses", cfg.DB.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsNonPositiveThresholds(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
split:
  chunk_size: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
