package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, uint64(1), cfg.Chain.ChainID)
	require.Equal(t, uint64(30_000_000), cfg.Chain.DefaultGasLimit)
	require.NotEmpty(t, cfg.Store.DataDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockexec.toml")
	doc := "[Chain]\nChainID = 7\n\n[Store]\nDataDir = \"/tmp/custom\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), cfg.Chain.ChainID)
	require.Equal(t, "/tmp/custom", cfg.Store.DataDir)
	// Fields left out of the file keep Default()'s value.
	require.Equal(t, uint64(30_000_000), cfg.Chain.DefaultGasLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
