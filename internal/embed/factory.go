package embed

import (
	"context"
	"strings"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderAuto picks a provider from the model id prefix.
	ProviderAuto ProviderType = "auto"

	// ProviderStatic uses hash-based embeddings (offline, deterministic)
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses a local or remote Ollama server
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API or a compatible server
	ProviderOpenAI ProviderType = "openai"
)

// Options carries provider settings that are not part of the model id.
type Options struct {
	Dimensions    int
	MaxRetries    int
	OllamaHost    string
	OpenAIBaseURL string
	OpenAIAPIKey  string

	// CacheSize > 0 wraps the embedder in a CachedEmbedder.
	CacheSize int
}

// ParseProvider validates a provider name. Empty means auto.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderAuto, nil
	case ProviderAuto, ProviderStatic, ProviderOllama, ProviderOpenAI:
		return p, nil
	default:
		return "", cerrors.New(cerrors.ErrCodeUnknownProvider, "unknown embedding provider: "+s, nil).
			WithSuggestion("Use one of: auto, static, ollama, openai")
	}
}

// ResolveModel splits a model id such as "ollama:nomic-embed-text" into its
// provider and bare model name. An explicit provider wins over the prefix.
func ResolveModel(provider ProviderType, model string) (ProviderType, string) {
	model = strings.TrimSpace(model)
	prefixed := ProviderType("")
	if p, rest, ok := strings.Cut(model, ":"); ok {
		switch ProviderType(p) {
		case ProviderStatic, ProviderOllama, ProviderOpenAI:
			prefixed, model = ProviderType(p), rest
		}
	}

	if provider != "" && provider != ProviderAuto {
		return provider, model
	}
	if prefixed != "" {
		return prefixed, model
	}
	if model == "" || model == StaticModelName {
		return ProviderStatic, StaticModelName
	}
	if strings.HasPrefix(model, "text-embedding-") {
		return ProviderOpenAI, model
	}
	return ProviderOllama, model
}

// NewEmbedder creates an embedder for provider and model. Network providers are
// not contacted here; failures surface on the first batch.
func NewEmbedder(_ context.Context, provider ProviderType, model string, opts Options) (Embedder, error) {
	provider, model = ResolveModel(provider, model)

	retry := cerrors.DefaultRetryConfig()
	if opts.MaxRetries >= 0 {
		retry.MaxRetries = opts.MaxRetries
	}

	var embedder Embedder
	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderOllama:
		if model == "" {
			model = DefaultOllamaModel
		}
		e, err := NewOllamaEmbedder(OllamaConfig{
			Host:       opts.OllamaHost,
			Model:      model,
			Dimensions: opts.Dimensions,
			Retry:      retry,
		})
		if err != nil {
			return nil, err
		}
		embedder = e
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     opts.OpenAIAPIKey,
			BaseURL:    opts.OpenAIBaseURL,
			Model:      model,
			Dimensions: opts.Dimensions,
			Retry:      retry,
		})
		if err != nil {
			return nil, err
		}
		embedder = e
	default:
		return nil, cerrors.New(cerrors.ErrCodeUnknownProvider, "unknown embedding provider: "+string(provider), nil)
	}

	if opts.CacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}
	return embedder, nil
}

// BackendOf reports the provider behind e, looking through a CachedEmbedder.
func BackendOf(e Embedder) ProviderType {
	if c, ok := e.(*CachedEmbedder); ok {
		e = c.Inner()
	}
	switch e.(type) {
	case *StaticEmbedder:
		return ProviderStatic
	case *OllamaEmbedder:
		return ProviderOllama
	case *OpenAIEmbedder:
		return ProviderOpenAI
	default:
		return ProviderType("custom")
	}
}
