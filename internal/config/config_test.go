package config

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 64, cfg.ContractCacheSize)
	require.Empty(t, cfg.ReplHistory)
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("CLARITY_LOG_LEVEL", "debug")
	t.Setenv("CLARITY_CONTRACT_CACHE_SIZE", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8, cfg.ContractCacheSize)
}

func TestLoadRejectsBadCacheSize(t *testing.T) {
	t.Setenv("CLARITY_CONTRACT_CACHE_SIZE", "zero")
	_, err := Load()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "parse env:"))

	t.Setenv("CLARITY_CONTRACT_CACHE_SIZE", "0")
	_, err = Load()
	require.Error(t, err)
}

// Exitf calls os.Exit, so it runs in a subprocess.
func TestExitf(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok, "expected *exec.ExitError, got %T", err)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, string(out), "fatal: something broke")
}
