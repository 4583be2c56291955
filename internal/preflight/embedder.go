package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/embed"
)

// EmbedProbeText is embedded once to check the provider end to end.
const EmbedProbeText = "int main() { return 0; }"

const embedProbeTimeout = 30 * time.Second

// CheckEmbedder builds the configured embedder and embeds one probe text.
// Static embeddings cannot fail, so only network providers can fail here.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	embedder, err := c.newEmbedder(ctx, cfg)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = embedder.Close() }()

	timeout := cfg.EmbedTimeout()
	if timeout <= 0 || timeout > embedProbeTimeout {
		timeout = embedProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	vec, err := embedder.Embed(probeCtx, EmbedProbeText)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s (%s) did not answer: %v", embed.BackendOf(embedder), embedder.ModelName(), err)
		result.Details = "Check embeddings.ollama_host / OPENAI_API_KEY or use --provider static"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s), %d dimensions", embed.BackendOf(embedder), embedder.ModelName(), len(vec))
	result.Details = fmt.Sprintf("probe took %s", time.Since(start).Round(time.Millisecond))
	return result
}

func defaultEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model, embed.Options{
		Dimensions:    cfg.Embeddings.Dimensions,
		MaxRetries:    0,
		OllamaHost:    cfg.Embeddings.OllamaHost,
		OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.Embeddings.OpenAIAPIKey,
	})
}
