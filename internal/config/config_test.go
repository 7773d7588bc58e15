package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true}, {"1", true}, {"yes", true}, {"on", true},
		{"TRUE", true}, {" On ", true},
		{"false", false}, {"0", false}, {"no", false}, {"off", false},
		{"Off", false}, {"\tNO\n", false},
	}
	for _, tt := range tests {
		got, err := ParseFlag(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	for _, bad := range []string{"", "y", "enabled", "2", "truee"} {
		_, err := ParseFlag(bad)
		assert.ErrorIs(t, err, ErrInvalidFlag, "input %q", bad)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8090", cfg.Port)
	assert.True(t, cfg.OptimizeMarkup)
	assert.True(t, cfg.ReconcileAnnotations)
	assert.False(t, cfg.CleanupStyles)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)

	opts := cfg.PreprocessOptions()
	assert.True(t, opts.OptimizeMarkup)
	assert.False(t, opts.CleanupStyles)
}

func TestLoad_EnvFlags(t *testing.T) {
	t.Setenv("ENABLE_HTML_OPTIMIZATION", "off")
	t.Setenv("ENABLE_LINK_CLEANUP", "YES")
	t.Setenv("ENABLE_STYLE_CLEANUP", "1")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.OptimizeMarkup)
	assert.True(t, cfg.ReconcileAnnotations)
	assert.True(t, cfg.CleanupStyles)
}

func TestLoad_BadFlagIsReported(t *testing.T) {
	t.Setenv("ENABLE_LINK_CLEANUP", "maybe")
	t.Setenv("CACHE_BACKEND", "disk")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFlag)
	assert.Contains(t, err.Error(), "ENABLE_LINK_CLEANUP")
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
	assert.True(t, cfg.ReconcileAnnotations, "bad value keeps the default")
}

func TestLoad_RedisNeedsAddr(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	assert.Error(t, Load().Validate())

	t.Setenv("REDIS_ADDR", "localhost:6379")
	assert.NoError(t, Load().Validate())
}

func TestLoad_CacheTTLMustBePositive(t *testing.T) {
	t.Setenv("CACHE_TTL", "0s")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")

	t.Setenv("CACHE_BACKEND", "none")
	assert.NoError(t, Load().Validate(), "no cache, no expiry to enforce")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epiprep.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "9000"

[preprocess]
optimize_markup = false
cleanup_styles = true

[workers]
count = 8
job_ttl = "30m"

[cache]
backend = "none"
ttl = "5m"
`), 0o644))
	t.Setenv("EPIPREP_CONFIG", path)
	t.Setenv("PORT", "9100")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "9100", cfg.Port, "environment wins over the file")
	assert.False(t, cfg.OptimizeMarkup)
	assert.True(t, cfg.ReconcileAnnotations)
	assert.True(t, cfg.CleanupStyles)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
	assert.Equal(t, "none", cfg.CacheBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = [unterminated"), 0o644))
	t.Setenv("EPIPREP_CONFIG", path)
	assert.Error(t, Load().Validate())

	t.Setenv("EPIPREP_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, Load().Validate())
}
