package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/ai/openai"
	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/listings"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sections"
	"github.com/spigell/job-matcher/internal/snapshot"
)

func newListingsClient(cfg *ListingsConfig, logger *zap.Logger) (*listings.Client, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "serpapi key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set listings.api-key-file or SERPAPI_KEY_FILE)", err)
	}

	return listings.New(logger, apiKey, listings.Options{
		Language:    cfg.Language,
		Country:     cfg.Country,
		PageTimeout: cfg.PageTimeout,
		PageDelay:   cfg.PageDelay,
	}), nil
}

func loadGeminiKey(cfg *GeminiConfig) (string, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}
	return apiKey, nil
}

// newEmbedder builds the configured embedding backend, wrapped with a cache
// when one is configured. The returned cleanup must always be called.
func newEmbedder(ctx context.Context, config *Config, logger *zap.Logger) (embedding.Embedder, func(), error) {
	cfg := config.Embedding
	noop := func() {}

	var (
		base embedding.Embedder
		err  error
	)

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "hashing":
		base = embedding.NewHashing(cfg.Dimension)
	case "gemini":
		apiKey, kerr := loadGeminiKey(config.AI.Gemini)
		if kerr != nil {
			return nil, noop, kerr
		}
		client, cerr := gemini.NewClient(ctx, apiKey)
		if cerr != nil {
			return nil, noop, cerr
		}
		base = gemini.NewEmbedder(client, gemini.EmbedderOptions{
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, logger)
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		apiKey, kerr := secrets.Load(secrets.Source{Name: "openai api key", Value: oc.APIKey, File: oc.APIKeyFile})
		if kerr != nil {
			return nil, noop, fmt.Errorf("%w (set embedding.openai.api-key-file or OPENAI_API_KEY_FILE)", kerr)
		}
		base, err = openai.NewEmbedder(openai.Config{
			APIKey:    apiKey,
			BaseURL:   oc.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
	default:
		return nil, noop, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if cfg.Cache == nil {
		return base, noop, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Type)) {
	case "", "none":
		return base, noop, nil
	case "memory":
		return embedding.NewCached(base, embedding.NewMemoryCache(), logger), noop, nil
	case "redis":
		rc := cfg.Cache.Redis
		if rc == nil || rc.Addr == "" {
			return nil, noop, fmt.Errorf("embedding.cache.redis.addr is required for the redis cache")
		}
		cache := embedding.NewRedisCache(embedding.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			TTL:      rc.TTL,
		})
		if err := cache.Ping(ctx); err != nil {
			// misses fall through to the backend
			logger.Warn("redis cache is unreachable", zap.String("addr", rc.Addr), zap.Error(err))
		}
		cleanup := func() {
			if err := cache.Close(); err != nil {
				logger.Debug("closing redis cache", zap.Error(err))
			}
		}
		return embedding.NewCached(base, cache, logger), cleanup, nil
	default:
		return nil, noop, fmt.Errorf("unsupported embedding cache: %s", cfg.Cache.Type)
	}
}

// newWriter builds the Gemini backed document writer. Guidelines are ranked
// with embedder.
func newWriter(ctx context.Context, cfg *GeminiConfig, embedder embedding.Embedder, logger *zap.Logger) (ai.Writer, error) {
	apiKey, err := loadGeminiKey(cfg)
	if err != nil {
		return nil, err
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	generator := gemini.NewGenerator(client, cfg.Model, cfg.MaxRetries, logger)

	var guidelines *ai.Guidelines
	if embedder != nil {
		guidelines, err = ai.NewGuidelines(ctx, embedder, ai.DefaultGuidelines)
		if err != nil {
			logger.Warn("resume guidelines are unavailable", zap.Error(err))
			guidelines = nil
		}
	}

	return gemini.NewEnhancer(generator, guidelines, logger), nil
}

func openSnapshots(cfg *SnapshotConfig, logger *zap.Logger) (*snapshot.Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	return snapshot.Open(cfg.Path, cfg.MaxAge, logger)
}

func readFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	if path == "-" {
		data, err := readAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// resumeText turns a resume into the text that gets embedded. A resume that
// already has recognised sections is reduced to them in canonical order.
func resumeText(raw string) string {
	m := sections.Extract(raw, sections.Default)
	if m.IsEmpty() {
		return strings.TrimSpace(raw)
	}
	return m.Text()
}
