package embed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama base URL. Empty reads OLLAMA_HOST from the environment.
	Host  string
	Model string

	// Dimensions is the expected vector width, 0 to learn it from the first response.
	Dimensions int

	Retry      cerrors.RetryConfig
	HTTPClient *http.Client
}

// DefaultOllamaConfig returns a config for a local Ollama server.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Model: DefaultOllamaModel,
		Retry: cerrors.DefaultRetryConfig(),
	}
}

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	client *api.Client
	model  string

	mu     sync.RWMutex
	dims   int
	closed bool
	retry  cerrors.RetryConfig
}

// NewOllamaEmbedder creates an embedder for cfg. It does not contact the server.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	var client *api.Client
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "invalid ollama host", err).
				WithDetail("host", cfg.Host)
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(u, httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "create ollama client from environment", err).
				WithSuggestion("Set OLLAMA_HOST or embeddings.ollama_host")
		}
	}

	return &OllamaEmbedder{
		client: client,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		retry:  cfg.Retry,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request, retrying transient failures.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.RLock()
	closed, dims := e.closed, e.dims
	e.mu.RUnlock()
	if closed {
		return nil, cerrors.EmbeddingError("ollama embedder is closed", nil)
	}

	req := &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	}

	vecs, err := cerrors.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
		resp, err := e.client.Embed(ctx, req)
		if err != nil {
			return nil, classifyOllamaError(ctx, err)
		}
		return resp.Embeddings, nil
	})
	if err != nil {
		return nil, wrapEmbedError(err, "ollama", e.model)
	}

	if err := CheckBatch(texts, vecs, dims); err != nil {
		return nil, err
	}

	if dims == 0 {
		e.mu.Lock()
		e.dims = len(vecs[0])
		e.mu.Unlock()
	}
	return vecs, nil
}

// Dimensions returns the vector width, 0 before the first successful call
// unless configured.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func classifyOllamaError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "embedding request cancelled", ctx.Err())
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return cerrors.New(cerrors.ErrCodeEmbeddingUnavailable,
				fmt.Sprintf("ollama returned %d", statusErr.StatusCode), err)
		}
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("ollama rejected request (%d)", statusErr.StatusCode), err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return cerrors.New(cerrors.ErrCodeEmbeddingUnavailable, "ollama is unreachable", err).
			WithSuggestion("Start Ollama with 'ollama serve' or use --provider static")
	}
	return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "ollama embed failed", err)
}

// wrapEmbedError attaches provider context while keeping the original code.
func wrapEmbedError(err error, provider, model string) error {
	ce, ok := cerrors.As(err)
	if !ok {
		ce = cerrors.New(cerrors.ErrCodeEmbeddingFailed, provider+" embed failed", err)
	}
	return ce.WithDetail("provider", provider).WithDetail("model", model)
}
