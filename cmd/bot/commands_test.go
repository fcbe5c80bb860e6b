package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_momentum_bot/internal/config"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	env := filepath.Join(t.TempDir(), ".env")

	out, err := execute(t, "--config", path, "--env", env, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Strategy.Symbol, cfg.Strategy.Symbol)

	_, err = execute(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  leverage: 0\n"), 0o600))

	_, err := execute(t, "--config", path, "--env", filepath.Join(dir, ".env"), "config", "validate")
	assert.Error(t, err)
}

func TestOpenRejectsBadSideBeforeConnecting(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "open", "sideways")
	assert.ErrorContains(t, err, "side must be long or short")

	_, err = execute(t, "open")
	assert.Error(t, err)
}

func TestLeverageRejectsNonNumeric(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "leverage", "ten")
	assert.ErrorContains(t, err, "invalid leverage")
}

func TestParseSide(t *testing.T) {
	side, err := parseSide("LONG")
	require.NoError(t, err)
	assert.Equal(t, domain.SideLong, side)

	side, err = parseSide("short")
	require.NoError(t, err)
	assert.Equal(t, domain.SideShort, side)

	_, err = parseSide("flat")
	assert.Error(t, err)
}
