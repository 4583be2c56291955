package indexer

import (
	"context"
	"io"

	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/embed"
	"github.com/Aman-CERP/codecorpus/internal/index"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
)

// Result is the outcome of a build.
type Result = index.RunnerResult

// Option configures Build.
type Option func(*options)

type options struct {
	renderer ui.Renderer
	embedder embed.Embedder
	index    store.VectorIndex
}

// WithRenderer sets the progress renderer. The default discards output.
func WithRenderer(r ui.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithEmbedder replaces the embedder built from the config. The caller
// keeps ownership and closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithIndex replaces the index built from the config.
func WithIndex(idx store.VectorIndex) Option {
	return func(o *options) {
		o.index = idx
	}
}

// Build runs the full pipeline for cfg and commits both artifacts.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.renderer == nil {
		o.renderer = ui.NewRenderer(ui.NewConfig(io.Discard, ui.WithForcePlain(true), ui.WithQuiet(true)))
	}

	// Configuration errors win over provider errors.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		e, err := NewEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer func() { _ = e.Close() }()
		embedder = e
	}

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: o.renderer,
		Config:   cfg,
		Embedder: embedder,
		Index:    o.index,
	})
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// NewEmbedder builds the embedder described by the embeddings section.
// Builds do not use the cache: every chunk text is embedded once.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model, EmbedOptions(cfg, 0))
}

// EmbedOptions maps the embeddings section to provider options.
func EmbedOptions(cfg *config.Config, cacheSize int) embed.Options {
	return embed.Options{
		Dimensions:    cfg.Embeddings.Dimensions,
		MaxRetries:    cfg.Embeddings.MaxRetries,
		OllamaHost:    cfg.Embeddings.OllamaHost,
		OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.Embeddings.OpenAIAPIKey,
		CacheSize:     cacheSize,
	}
}
