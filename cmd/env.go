package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adintel-cli/internal/pipeline"
	"github.com/sells-group/adintel-cli/internal/registry"
	"github.com/sells-group/adintel-cli/internal/store"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
	"github.com/sells-group/adintel-cli/pkg/openai"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "adintel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the pipeline with the store it owns.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline builds the store, the external clients, and the pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	adlibClient := adlibrary.NewClient(cfg.AdLibrary.Key,
		adlibrary.WithBaseURL(cfg.AdLibrary.BaseURL),
		adlibrary.WithRateLimit(cfg.AdLibrary.RequestsPerSec),
	)
	aiClient := anthropic.NewClient(cfg.Anthropic.Key)
	embedClient := openai.NewClient(cfg.OpenAI.Key)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, adlibClient, aiClient, embedClient, reg),
	}, nil
}
