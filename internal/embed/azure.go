package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

// AzureConfig configures the Azure OpenAI embedding client.
type AzureConfig struct {
	Endpoint   string // e.g. https://myresource.openai.azure.com
	APIKey     string
	Deployment string // embeddings deployment name
	APIVersion string // e.g. 2024-06-01

	Dimensions      int
	BatchSize       int
	Retry           RetryPolicy
	InterBatchPause time.Duration
	Timeout         time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Sleep overrides blocking pauses (tests inject a fake clock).
	Sleep func(time.Duration)
}

// AzureEmbedder generates embeddings via the Azure OpenAI REST API.
//
// The rate-limit backoff is scoped to the embedder: its pause grows with
// every rate-limit rejection over the embedder's lifetime and never resets,
// so repeated throttling across batches and across documents keeps slowing
// the run down.
type AzureEmbedder struct {
	client  *http.Client
	config  AzureConfig
	sleep   func(time.Duration)
	backoff *backoff
}

var _ Embedder = (*AzureEmbedder)(nil)

// NewAzureEmbedder creates an Azure OpenAI embedder.
func NewAzureEmbedder(cfg AzureConfig) (*AzureEmbedder, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.Deployment == "" {
		return nil, fmt.Errorf("azure embedder requires endpoint, api key, and deployment")
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-01"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.InterBatchPause <= 0 {
		cfg.InterBatchPause = DefaultInterBatchPause
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &AzureEmbedder{
		client:  client,
		config:  cfg,
		sleep:   sleep,
		backoff: newBackoff(cfg.Retry, sleep),
	}, nil
}

// Embed generates the embedding for a single text.
func (e *AzureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in fixed-size batches. Each batch is attempted up
// to the retry ceiling; rate-limit rejections back off with the embedder's
// monotonically growing pause, while any other failure aborts immediately.
// A fixed pause separates successful batches.
//
// The returned vector count always equals the input count; a backend that
// returns a short batch produces an EmbeddingCountMismatch error instead of
// silently padded or truncated results.
func (e *AzureEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		slog.Debug("embedding_batch",
			slog.Int("start", start),
			slog.Int("size", len(batch)),
			slog.Int("total", len(texts)))

		batchVectors, err := e.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batchVectors...)

		if end < len(texts) {
			e.sleep(e.config.InterBatchPause)
		}
	}

	if len(vectors) != len(texts) {
		return nil, qerrors.CountMismatch(len(texts), len(vectors))
	}
	return vectors, nil
}

// embedWithRetry retries a single batch on rate-limit rejections only.
func (e *AzureEmbedder) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.Retry.MaxAttempts; attempt++ {
		vectors, err := e.doEmbed(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		if !qerrors.IsRateLimited(err) {
			return nil, err
		}

		lastErr = err
		slog.Warn("embedding_rate_limited",
			slog.Int("attempt", attempt),
			slog.Duration("pause", e.backoff.delay))
		if attempt < e.config.Retry.MaxAttempts {
			e.backoff.wait()
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", e.config.Retry.MaxAttempts, lastErr)
}

type azureEmbeddingRequest struct {
	Input []string `json:"input"`
}

type azureEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// doEmbed issues one embeddings request.
func (e *AzureEmbedder) doEmbed(ctx context.Context, batch []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		e.config.Endpoint, e.config.Deployment, e.config.APIVersion)

	body, err := json.Marshal(azureEmbeddingRequest{Input: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, qerrors.Backend("embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, qerrors.RateLimited(nil)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, qerrors.Backend(
			fmt.Sprintf("embedding backend returned %d: %s", resp.StatusCode, string(snippet)), nil)
	}

	var parsed azureEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, qerrors.Backend("decode embedding response", err)
	}

	// The API reports each vector's input position; order by it rather than
	// trusting response order.
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})
	vectors := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}

// Dimensions returns the configured embedding dimensionality.
func (e *AzureEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// ModelName returns the deployment identifier.
func (e *AzureEmbedder) ModelName() string {
	return e.config.Deployment
}

// Close releases idle connections.
func (e *AzureEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
