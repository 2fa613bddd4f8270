package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"

	AuditDynamoDB = "dynamodb"
	AuditSQLite   = "sqlite"
	AuditNone     = "none"

	// Secret parameter names, relative to ParamPrefix.
	SecretArkAPIKey    = "ark-api-key"
	SecretGeminiAPIKey = "gemini-api-key"
	SecretAmapKey      = "amap-key"
)

// devSecrets are development placeholders used when neither the environment
// nor the parameter store supplies a value. They are not production secrets.
var devSecrets = map[string]string{
	SecretArkAPIKey:    "dev-ark-api-key",
	SecretGeminiAPIKey: "dev-gemini-api-key",
	SecretAmapKey:      "dev-amap-key",
}

type Config struct {
	Upstream  UpstreamConfig
	Directory DirectoryConfig
	Audit     AuditConfig
	Cache     CacheConfig
	Log       LogConfig
	HTTP      HTTPConfig

	// ParamPrefix is the SSM path prefix for secrets. UseParamStore is true
	// only when PARAM_PREFIX was set explicitly.
	ParamPrefix   string
	UseParamStore bool

	// Secrets holds secret values supplied explicitly through the
	// environment, keyed by secret name. Unset secrets are absent.
	Secrets map[string]string
}

type UpstreamConfig struct {
	Provider        string
	Endpoint        string
	Model           string
	GeminiModel     string
	Budget          time.Duration
	HistoryLimit    int
	KeyHistoryLimit int
}

type DirectoryConfig struct {
	Table         string
	AmapBaseURL   string
	EnrichTimeout time.Duration
	IngestTimeout time.Duration
}

type AuditConfig struct {
	Backend    string
	Table      string
	SQLitePath string
	Timeout    time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	Addr string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream_provider", ProviderArk)
	v.SetDefault("ark_endpoint", "https://ark.cn-beijing.volces.com/api/v3/chat/completions")
	v.SetDefault("ark_model", "doubao-seed-1-6-250615")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("upstream_budget", 6*time.Second)
	v.SetDefault("history_limit", 6)
	v.SetDefault("key_history_limit", 2)

	v.SetDefault("directory_table", "merchants")
	v.SetDefault("amap_base_url", "https://restapi.amap.com")
	v.SetDefault("enrich_timeout", 3*time.Second)
	v.SetDefault("ingest_timeout", 20*time.Second)

	v.SetDefault("audit_backend", AuditDynamoDB)
	v.SetDefault("audit_table", "reply-gateway-audit")
	v.SetDefault("audit_sqlite_path", "reply-gateway-audit.db")
	v.SetDefault("audit_timeout", 5*time.Second)

	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("http_addr", ":8080")
}

const defaultParamPrefix = "/reply-gateway"

// Load reads an optional .env file, then resolves every setting from the
// environment with development defaults.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Upstream: UpstreamConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("upstream_provider"))),
			Endpoint:        strings.TrimSpace(v.GetString("ark_endpoint")),
			Model:           strings.TrimSpace(v.GetString("ark_model")),
			GeminiModel:     strings.TrimSpace(v.GetString("gemini_model")),
			Budget:          v.GetDuration("upstream_budget"),
			HistoryLimit:    v.GetInt("history_limit"),
			KeyHistoryLimit: v.GetInt("key_history_limit"),
		},
		Directory: DirectoryConfig{
			Table:         strings.TrimSpace(v.GetString("directory_table")),
			AmapBaseURL:   strings.TrimSpace(v.GetString("amap_base_url")),
			EnrichTimeout: v.GetDuration("enrich_timeout"),
			IngestTimeout: v.GetDuration("ingest_timeout"),
		},
		Audit: AuditConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("audit_backend"))),
			Table:      strings.TrimSpace(v.GetString("audit_table")),
			SQLitePath: strings.TrimSpace(v.GetString("audit_sqlite_path")),
			Timeout:    v.GetDuration("audit_timeout"),
		},
		Cache: CacheConfig{TTL: v.GetDuration("cache_ttl")},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: strings.ToLower(v.GetString("log_format")),
		},
		HTTP:          HTTPConfig{Addr: v.GetString("http_addr")},
		ParamPrefix:   strings.TrimRight(strings.TrimSpace(v.GetString("param_prefix")), "/"),
		Secrets:       map[string]string{},
	}
	cfg.UseParamStore = cfg.ParamPrefix != ""
	if !cfg.UseParamStore {
		cfg.ParamPrefix = defaultParamPrefix
	}

	for name, key := range map[string]string{
		SecretArkAPIKey:    "ark_api_key",
		SecretGeminiAPIKey: "gemini_api_key",
		SecretAmapKey:      "amap_key",
	} {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			cfg.Secrets[name] = val
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Upstream.Provider {
	case ProviderArk, ProviderGemini:
	default:
		return fmt.Errorf("invalid upstream provider: %q", c.Upstream.Provider)
	}
	if c.Upstream.Provider == ProviderArk && c.Upstream.Model == "" {
		return errors.New("ark_model is required")
	}
	if c.Upstream.Provider == ProviderGemini && c.Upstream.GeminiModel == "" {
		return errors.New("gemini_model is required")
	}
	if c.Upstream.Budget <= 0 {
		return fmt.Errorf("invalid upstream budget: %s", c.Upstream.Budget)
	}
	if c.Upstream.HistoryLimit <= 0 || c.Upstream.KeyHistoryLimit <= 0 {
		return fmt.Errorf("history limits must be positive: %d/%d", c.Upstream.HistoryLimit, c.Upstream.KeyHistoryLimit)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl: %s", c.Cache.TTL)
	}
	if c.Directory.Table == "" {
		return errors.New("directory_table is required")
	}
	if c.Directory.EnrichTimeout <= 0 || c.Directory.IngestTimeout <= 0 {
		return errors.New("enrich and ingest timeouts must be positive")
	}
	switch c.Audit.Backend {
	case AuditDynamoDB:
		if c.Audit.Table == "" {
			return errors.New("audit_table is required for the dynamodb audit backend")
		}
	case AuditSQLite:
		if c.Audit.SQLitePath == "" {
			return errors.New("audit_sqlite_path is required for the sqlite audit backend")
		}
	case AuditNone:
	default:
		return fmt.Errorf("invalid audit backend: %q", c.Audit.Backend)
	}
	if c.Audit.Timeout <= 0 {
		return fmt.Errorf("invalid audit timeout: %s", c.Audit.Timeout)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q, must be 'json' or 'text'", c.Log.Format)
	}
	return nil
}

// SecretName returns the fully qualified parameter name for a secret.
func (c *Config) SecretName(name string) string {
	return c.ParamPrefix + "/" + name
}

// DevSecrets returns the development placeholder for every secret, keyed by
// fully qualified parameter name.
func (c *Config) DevSecrets() map[string]string {
	out := make(map[string]string, len(devSecrets))
	for name, val := range devSecrets {
		out[c.SecretName(name)] = val
	}
	return out
}

// EnvSecrets returns the explicitly supplied secrets keyed by fully
// qualified parameter name.
func (c *Config) EnvSecrets() map[string]string {
	out := make(map[string]string, len(c.Secrets))
	for name, val := range c.Secrets {
		out[c.SecretName(name)] = val
	}
	return out
}
