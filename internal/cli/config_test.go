package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imaged/internal/config"
)

// captureServe runs `imaged <args>` with the daemon stubbed out and returns
// the config it would have served with.
func captureServe(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	old := fnServe
	t.Cleanup(func() { fnServe = old })
	var got config.Config
	fnServe = func(_ context.Context, cfg config.Config, _ zerolog.Logger) error {
		got = cfg
		return nil
	}
	var out, errb bytes.Buffer
	opts := &Options{Server: "http://127.0.0.1:1", Stdout: &out, Stderr: &errb}
	root := buildRootCmdWith(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return got, err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"IMAGED_ADDR", "IMAGED_MODELS_DIR", "IMAGED_DEVICE", "IMAGED_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestServeDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := captureServe(t, "serve")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestServeLayering(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "imaged.yaml")
	yaml := "addr: \":7000\"\nmodels_dir: /from/file\nbusy_policy: fail\nplugins: [diffusers]\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("IMAGED_MODELS_DIR", "/from/env")

	cfg, err := captureServe(t, "--config", path, "--log-level", "warn", "serve",
		"--addr", ":7100", "--plugins", "kandinsky22, diffusers", "--watch", "--cors-origins", "http://a,http://b")
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Addr)
	assert.Equal(t, "/from/env", cfg.ModelsDir)
	assert.Equal(t, config.PolicyFail, cfg.BusyPolicy)
	assert.Equal(t, []string{"kandinsky22", "diffusers"}, cfg.Plugins)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Watch)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	_, err := captureServe(t, "serve", "--busy-policy", "maybe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy_policy")

	_, err = captureServe(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "serve")
	require.Error(t, err)
}

func TestNewLoggerWritesFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "imaged.log")
	log, closer := newLogger("debug", file, &console)
	log.Debug().Str("k", "v").Msg("hello")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "hello")
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"hello"`)
	assert.Contains(t, string(b), `"k":"v"`)
}

func TestNewLoggerLevel(t *testing.T) {
	var console bytes.Buffer
	log, _ := newLogger("bogus", "", &console)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	log.Debug().Msg("hidden")
	assert.Empty(t, console.String())
}
