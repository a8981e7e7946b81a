package main

import (
	"path/filepath"
	"testing"

	"github.com/auraspeak/rendezvous/internal/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(prev) })

	assert.NoError(t, setLogLevel("warn"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.NoError(t, setLogLevel(""))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.Error(t, setLogLevel("loud"))
}

func TestRun_Help(t *testing.T) {
	assert.ErrorIs(t, run([]string{"--help"}), pflag.ErrHelp)
}

func TestRun_UnknownFlag(t *testing.T) {
	assert.Error(t, run([]string{"--bogus"}))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PORT", "")
	path := t.TempDir() + "/missing.yml"
	assert.Error(t, run([]string{"--config", path, "--log-level", "loud"}))
}

func TestRun_WriteDefaultConfig(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "server_config.yml")

	require.NoError(t, run([]string{"--config", path, "--write-default-config"}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestRun_WriteDefaultConfig_BadPath(t *testing.T) {
	err := run([]string{"--config", "/nonexistent/dir/server_config.yml", "--write-default-config"})
	assert.Error(t, err)
}
