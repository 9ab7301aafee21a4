package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToCurrentDirectorySwap(t *testing.T) {
	os.Unsetenv(swapDirEnvVar)
	cfg, err := Load(0)
	require.NoError(t, err)
	require.Equal(t, ".", cfg.SwapDir)
	require.Equal(t, 0, cfg.Port)
}

func TestLoadHonorsSwapDirEnvVar(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(swapDirEnvVar, dir)

	cfg, err := Load(7890)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.SwapDir)
	require.Equal(t, 7890, cfg.Port)
}

func TestLoadRejectsMissingSwapDir(t *testing.T) {
	t.Setenv(swapDirEnvVar, filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := Load(0)
	require.Error(t, err)
}

func TestLoadRejectsSwapDirThatIsAFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	t.Setenv(swapDirEnvVar, file)

	_, err := Load(0)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangePort(t *testing.T) {
	os.Unsetenv(swapDirEnvVar)
	_, err := Load(70000)
	require.Error(t, err)
}

func TestParseFlagsReadsPortFlag(t *testing.T) {
	os.Unsetenv(swapDirEnvVar)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseFlags(fs, []string{"-port", "9999"})
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
}
