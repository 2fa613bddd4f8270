package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"UPSTREAM_PROVIDER", "ARK_ENDPOINT", "ARK_MODEL", "ARK_API_KEY", "GEMINI_API_KEY", "GEMINI_MODEL",
		"AMAP_KEY", "AMAP_BASE_URL", "UPSTREAM_BUDGET", "CACHE_TTL", "HISTORY_LIMIT", "KEY_HISTORY_LIMIT",
		"DIRECTORY_TABLE", "AUDIT_BACKEND", "AUDIT_TABLE", "AUDIT_SQLITE_PATH", "AUDIT_TIMEOUT",
		"PARAM_PREFIX", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "ENRICH_TIMEOUT", "INGEST_TIMEOUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ProviderArk, cfg.Upstream.Provider)
	require.Equal(t, "doubao-seed-1-6-250615", cfg.Upstream.Model)
	require.Equal(t, 6*time.Second, cfg.Upstream.Budget)
	require.Equal(t, 6, cfg.Upstream.HistoryLimit)
	require.Equal(t, 2, cfg.Upstream.KeyHistoryLimit)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, "merchants", cfg.Directory.Table)
	require.Equal(t, AuditDynamoDB, cfg.Audit.Backend)
	require.False(t, cfg.UseParamStore)
	require.Equal(t, "/reply-gateway", cfg.ParamPrefix)
	require.Empty(t, cfg.Secrets)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPSTREAM_PROVIDER", "Gemini")
	t.Setenv("UPSTREAM_BUDGET", "2s")
	t.Setenv("AUDIT_BACKEND", "sqlite")
	t.Setenv("PARAM_PREFIX", "/prod/gateway/")
	t.Setenv("ARK_API_KEY", " ark-secret ")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.Upstream.Provider)
	require.Equal(t, 2*time.Second, cfg.Upstream.Budget)
	require.Equal(t, AuditSQLite, cfg.Audit.Backend)
	require.True(t, cfg.UseParamStore)
	require.Equal(t, "/prod/gateway", cfg.ParamPrefix)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, map[string]string{"/prod/gateway/ark-api-key": "ark-secret"}, cfg.EnvSecrets())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARK_MODEL=custom-model\nCACHE_TTL=90s\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("ARK_MODEL")
		_ = os.Unsetenv("CACHE_TTL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom-model", cfg.Upstream.Model)
	require.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"provider", "UPSTREAM_PROVIDER", "bedrock", "invalid upstream provider"},
		{"audit backend", "AUDIT_BACKEND", "mongo", "invalid audit backend"},
		{"log format", "LOG_FORMAT", "xml", "invalid log format"},
		{"budget", "UPSTREAM_BUDGET", "0s", "invalid upstream budget"},
		{"history", "HISTORY_LIMIT", "0", "history limits must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDevSecrets_QualifiedNames(t *testing.T) {
	cfg := &Config{ParamPrefix: "/x"}
	got := cfg.DevSecrets()
	require.Equal(t, "dev-ark-api-key", got["/x/ark-api-key"])
	require.Equal(t, "dev-amap-key", got["/x/amap-key"])
	require.Len(t, got, 3)
}
