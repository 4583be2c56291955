package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible server. Empty uses api.openai.com.
	BaseURL string
	Model   string

	// Dimensions requests shortened vectors from models that support it.
	Dimensions int

	Retry      cerrors.RetryConfig
	HTTPClient *http.Client
}

// knownOpenAIDimensions lists native widths of the hosted embedding models.
var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder calls the /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	requested int

	mu     sync.RWMutex
	dims   int
	closed bool
	retry  cerrors.RetryConfig
}

// NewOpenAIEmbedder creates an embedder for cfg. A base URL without an API key
// is allowed for local OpenAI-compatible servers.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, cerrors.New(cerrors.ErrCodeEmbeddingUnavailable, "OPENAI_API_KEY is not set", nil).
			WithSuggestion("Export OPENAI_API_KEY, add it to .env, or use --provider static")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = knownOpenAIDimensions[cfg.Model]
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		requested: cfg.Dimensions,
		dims:      dims,
		retry:     cfg.Retry,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request. The API may return data out of
// order, so results are placed by their Index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.RLock()
	closed, dims := e.closed, e.dims
	e.mu.RUnlock()
	if closed {
		return nil, cerrors.EmbeddingError("openai embedder is closed", nil)
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.requested,
	}

	data, err := cerrors.RetryWithResult(ctx, e.retry, func() ([]openai.Embedding, error) {
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, classifyOpenAIError(ctx, err)
		}
		return resp.Data, nil
	})
	if err != nil {
		return nil, wrapEmbedError(err, "openai", e.model)
	}

	if len(data) != len(texts) {
		return nil, CheckBatch(texts, make([][]float32, len(data)), dims)
	}

	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float32, len(data))
	for i, d := range data {
		if d.Index != i {
			return nil, cerrors.New(cerrors.ErrCodeEmbeddingMismatch,
				fmt.Sprintf("openai response is missing index %d", i), nil)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		vecs[i] = v
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

// Dimensions returns the vector width, 0 if unknown before the first call.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "embedding request cancelled", ctx.Err())
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 0, status == http.StatusTooManyRequests, status >= 500:
		return cerrors.New(cerrors.ErrCodeEmbeddingUnavailable, "openai embeddings unavailable", err)
	case status == http.StatusUnauthorized:
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed, "openai rejected the API key", err).
			WithSuggestion("Check OPENAI_API_KEY")
	default:
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("openai rejected request (%d)", status), err)
	}
}
