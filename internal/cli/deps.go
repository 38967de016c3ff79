package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"perspective/config"
	"perspective/internal/adapter/embedding"
	"perspective/internal/adapter/journal"
	"perspective/internal/adapter/keyword"
	"perspective/internal/adapter/llm"
	"perspective/internal/adapter/mirror"
	"perspective/internal/adapter/profile"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
	"perspective/internal/usecase"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newEmbedder builds the configured embedder, wrapped in a query cache when
// embedding.cache_size is positive.
func newEmbedder(c *config.Config) (port.Embedder, error) {
	e, err := embedding.New(c.Embedding.Provider, embedding.Options{
		APIKeyEnv: c.Embedding.APIKeyEnv,
		Model:     c.Embedding.Model,
		BaseURL:   c.Embedding.BaseURL,
		Dimension: c.Embedding.Dimension,
		Timeout:   seconds(c.Embedding.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if c.Embedding.CacheSize > 0 {
		return embedding.NewCachedEmbedder(e, c.Embedding.CacheSize, seconds(c.Embedding.CacheTTLSecs)), nil
	}
	return e, nil
}

func newLLM(c *config.Config) (*llm.Client, error) {
	client, err := llm.NewClient(llm.Options{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		BaseURL:     c.LLM.BaseURL,
		APIKeyEnv:   c.LLM.APIKeyEnv,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     seconds(c.LLM.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// newLabelerLLM shares the llm endpoint but uses the labeler model.
func newLabelerLLM(c *config.Config) (*llm.Client, error) {
	client, err := llm.NewClient(llm.Options{
		Provider:    c.LLM.Provider,
		Model:       c.Labeler.Model,
		BaseURL:     c.LLM.BaseURL,
		APIKeyEnv:   c.LLM.APIKeyEnv,
		Temperature: c.Labeler.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     seconds(c.LLM.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create labeler client: %w", err)
	}
	return client, nil
}

// profileStore is a listable ProfileStore that holds resources.
type profileStore interface {
	port.ProfileStore
	List(ctx context.Context) ([]*domain.ProfileState, error)
	Close() error
}

type fileProfiles struct{ *profile.FileStore }

func (fileProfiles) Close() error { return nil }

func openProfiles(ctx context.Context, c *config.Config) (profileStore, error) {
	if c.Profile.Backend == "redis" {
		client, err := profile.DialRedis(ctx, c.Profile.RedisAddr)
		if err != nil {
			return nil, err
		}
		return profile.NewRedisStore(client, seconds(c.Profile.RedisTTLSecs)), nil
	}
	return fileProfiles{profile.NewFileStore(c.Store.DataDir)}, nil
}

// openJournal returns nil when the journal is disabled.
func openJournal(c *config.Config) (*journal.DB, error) {
	if !c.Journal.Enabled {
		return nil, nil
	}
	if err := c.EnsureDataDir(); err != nil {
		return nil, err
	}
	return journal.Open(c.JournalPath())
}

// openMirror returns nil when qdrant.url is empty.
func openMirror(c *config.Config) (*mirror.Qdrant, error) {
	if c.Qdrant.URL == "" {
		return nil, nil
	}
	var apiKey string
	if c.Qdrant.APIKeyEnv != "" {
		apiKey = os.Getenv(c.Qdrant.APIKeyEnv)
	}
	return mirror.New(mirror.Config{
		URL:        c.Qdrant.URL,
		Collection: c.Qdrant.Collection,
		APIKey:     apiKey,
	})
}

func openKeyword(c *config.Config) (*keyword.Index, error) {
	if err := c.EnsureDataDir(); err != nil {
		return nil, err
	}
	return keyword.Open(c.KeywordPath())
}

// engine bundles a perspective engine with the resources it holds open.
type engine struct {
	*usecase.PerspectiveEngine
	journal  *journal.DB
	profiles profileStore
}

func (e *engine) Close() {
	if e.journal != nil {
		e.journal.Close()
	}
	if e.profiles != nil {
		e.profiles.Close()
	}
}

// newEngine builds the engine from config without loading the store.
// Profile and journal backends that fail to open are logged and skipped.
func newEngine(ctx context.Context, c *config.Config) (*engine, error) {
	emb, err := newEmbedder(c)
	if err != nil {
		return nil, err
	}
	client, err := newLLM(c)
	if err != nil {
		return nil, err
	}

	e := &engine{
		PerspectiveEngine: usecase.NewPerspectiveEngine(emb, client, usecase.EngineOptions{
			TopK:            c.Perspective.TopK,
			MaxContextChars: c.Perspective.MaxContextChars,
			Temperature:     c.LLM.Temperature,
			MaxTokens:       c.LLM.MaxTokens,
			Persona:         c.Perspective.Persona,
		}),
	}

	if profiles, err := openProfiles(ctx, c); err != nil {
		logging.Warnf("profile store unavailable: %v", err)
	} else {
		e.profiles = profiles
		e.WithProfiles(profiles)
	}

	if j, err := openJournal(c); err != nil {
		logging.Warnf("journal unavailable: %v", err)
	} else if j != nil {
		e.journal = j
		e.WithJournal(j)
	}
	return e, nil
}
