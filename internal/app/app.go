// Package app assembles the gateway from configuration. Both the Lambda
// entry point and the CLI build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"reply-gateway/handler"
	"reply-gateway/internal/cache"
	"reply-gateway/internal/config"
	"reply-gateway/internal/ingest"
	"reply-gateway/internal/integrations/amap"
	"reply-gateway/internal/integrations/ark"
	"reply-gateway/internal/integrations/gemini"
	"reply-gateway/internal/integrations/paramstore"
	"reply-gateway/internal/repository"
	"reply-gateway/internal/usecase"
)

type App struct {
	Handler *handler.Handler
	Replies *usecase.ReplyService
	Ingest  *ingest.Pipeline
	Audit   *usecase.AuditRecorder
	Cache   *cache.Fingerprints

	// AuditLog is set only for the sqlite audit backend.
	AuditLog *repository.SQLiteAuditStore
}

var loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}

	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	dynamo := awsdynamodb.NewFromConfig(awsCfg)

	secrets, err := secretSource(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	llm, model, err := newLLM(cfg, secrets)
	if err != nil {
		return nil, err
	}

	directory, err := repository.NewDirectory(dynamo, cfg.Directory.Table)
	if err != nil {
		return nil, fmt.Errorf("app: directory: %w", err)
	}
	amapKey, err := paramstore.NewSecret(secrets, cfg.SecretName(config.SecretAmapKey))
	if err != nil {
		return nil, fmt.Errorf("app: amap key: %w", err)
	}
	amapClient, err := amap.NewClient(amapKey, amap.WithBaseURL(cfg.Directory.AmapBaseURL))
	if err != nil {
		return nil, fmt.Errorf("app: amap client: %w", err)
	}
	pipeline, err := ingest.NewPipeline(amapClient, directory, cfg.Directory.IngestTimeout)
	if err != nil {
		return nil, fmt.Errorf("app: ingest pipeline: %w", err)
	}
	enricher, err := usecase.NewEnrichmentProvider(directory, pipeline)
	if err != nil {
		return nil, fmt.Errorf("app: enrichment: %w", err)
	}

	a := &App{Ingest: pipeline, Cache: cache.New(cfg.Cache.TTL)}

	var store usecase.AuditStore
	switch cfg.Audit.Backend {
	case config.AuditDynamoDB:
		s, err := repository.NewAuditStore(dynamo, cfg.Audit.Table)
		if err != nil {
			return nil, fmt.Errorf("app: audit store: %w", err)
		}
		store = s
	case config.AuditSQLite:
		s, err := repository.OpenSQLiteAuditStore(ctx, cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("app: audit store: %w", err)
		}
		a.AuditLog = s
		store = s
	case config.AuditNone:
	default:
		return nil, fmt.Errorf("app: unknown audit backend %q", cfg.Audit.Backend)
	}
	a.Audit = usecase.NewAuditRecorder(store, cfg.Audit.Timeout, slog.Default())

	a.Replies, err = usecase.NewReplyService(llm, enricher, a.Cache, a.Audit, usecase.ReplyConfig{
		Model:           model,
		Budget:          cfg.Upstream.Budget,
		HistoryLimit:    cfg.Upstream.HistoryLimit,
		KeyHistoryLimit: cfg.Upstream.KeyHistoryLimit,
		EnrichTimeout:   cfg.Directory.EnrichTimeout,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: reply service: %w", err)
	}
	a.Handler, err = handler.NewHandler(a.Replies)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: handler: %w", err)
	}
	return a, nil
}

// Close waits for pending audit writes and releases the local audit store.
func (a *App) Close() error {
	if a.Audit != nil {
		a.Audit.Wait()
	}
	if a.AuditLog != nil {
		return a.AuditLog.Close()
	}
	return nil
}

// secretSource resolves secrets from the environment first, then SSM when a
// prefix is configured, then development placeholders.
func secretSource(cfg *config.Config, awsCfg aws.Config) (paramstore.Getter, error) {
	chain := paramstore.Chain{paramstore.Static(cfg.EnvSecrets())}
	if cfg.UseParamStore {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: ssm client: %w", err)
		}
		chain = append(chain, ssmClient)
	}
	chain = append(chain, paramstore.Static(cfg.DevSecrets()))
	return chain, nil
}

func newLLM(cfg *config.Config, secrets paramstore.Getter) (usecase.LLMClient, string, error) {
	switch cfg.Upstream.Provider {
	case config.ProviderGemini:
		key, err := paramstore.NewSecret(secrets, cfg.SecretName(config.SecretGeminiAPIKey))
		if err != nil {
			return nil, "", fmt.Errorf("app: gemini key: %w", err)
		}
		c, err := gemini.NewClient(key)
		if err != nil {
			return nil, "", fmt.Errorf("app: gemini client: %w", err)
		}
		return c, cfg.Upstream.GeminiModel, nil
	case config.ProviderArk:
		key, err := paramstore.NewSecret(secrets, cfg.SecretName(config.SecretArkAPIKey))
		if err != nil {
			return nil, "", fmt.Errorf("app: ark key: %w", err)
		}
		c, err := ark.NewClient(key, ark.WithEndpoint(cfg.Upstream.Endpoint))
		if err != nil {
			return nil, "", fmt.Errorf("app: ark client: %w", err)
		}
		return c, cfg.Upstream.Model, nil
	default:
		return nil, "", fmt.Errorf("app: unknown upstream provider %q", cfg.Upstream.Provider)
	}
}
