package searchidx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

// DefaultAPIVersion is the Azure AI Search REST API version used when the
// config does not pin one.
const DefaultAPIVersion = "2024-07-01"

// AzureConfig configures the hosted search index client.
type AzureConfig struct {
	Endpoint   string // e.g. https://myservice.search.windows.net
	APIKey     string
	IndexName  string
	APIVersion string

	// SemanticConfiguration overrides the reranker configuration name.
	// Empty derives "<index>-semantic-configuration".
	SemanticConfiguration string

	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// AzureIndex talks to an Azure AI Search index over REST.
type AzureIndex struct {
	client *http.Client
	config AzureConfig
}

var _ Index = (*AzureIndex)(nil)

// NewAzureIndex creates a hosted index client.
func NewAzureIndex(cfg AzureConfig) (*AzureIndex, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.IndexName == "" {
		return nil, fmt.Errorf("azure index requires endpoint, api key, and index name")
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.SemanticConfiguration == "" {
		cfg.SemanticConfiguration = cfg.IndexName + "-semantic-configuration"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &AzureIndex{client: client, config: cfg}, nil
}

type azureIndexDefinition struct {
	Fields []struct {
		Name string `json:"name"`
	} `json:"fields"`
}

// FieldNames fetches the index definition and returns its field names.
func (a *AzureIndex) FieldNames(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/indexes/%s?api-version=%s",
		a.config.Endpoint, a.config.IndexName, a.config.APIVersion)

	var def azureIndexDefinition
	if err := a.do(ctx, http.MethodGet, url, nil, &def); err != nil {
		return nil, fmt.Errorf("fetch index definition: %w", err)
	}

	names := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		names = append(names, f.Name)
	}
	return names, nil
}

type azureIndexBatchResponse struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
		StatusCode   int    `json:"statusCode"`
	} `json:"value"`
}

// Upload upserts documents with the mergeOrUpload action.
func (a *AzureIndex) Upload(ctx context.Context, docs []Document) ([]IndexResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	actions := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		actions = append(actions, map[string]any{
			"@search.action": "mergeOrUpload",
			FieldChunkID:     doc.ChunkID,
			FieldParentID:    doc.ParentID,
			FieldTitle:       doc.Title,
			FieldChunk:       doc.Chunk,
			FieldVector:      doc.Vector,
			FieldMetadata:    doc.Metadata,
		})
	}
	return a.indexBatch(ctx, actions)
}

// Delete removes documents by key. Azure treats deleting an absent key as
// success, which is exactly the semantics callers rely on.
func (a *AzureIndex) Delete(ctx context.Context, chunkIDs []string) ([]IndexResult, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	actions := make([]map[string]any, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		actions = append(actions, map[string]any{
			"@search.action": "delete",
			FieldChunkID:     id,
		})
	}
	return a.indexBatch(ctx, actions)
}

func (a *AzureIndex) indexBatch(ctx context.Context, actions []map[string]any) ([]IndexResult, error) {
	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s",
		a.config.Endpoint, a.config.IndexName, a.config.APIVersion)

	var parsed azureIndexBatchResponse
	if err := a.do(ctx, http.MethodPost, url, map[string]any{"value": actions}, &parsed); err != nil {
		return nil, fmt.Errorf("index batch: %w", err)
	}

	results := make([]IndexResult, 0, len(parsed.Value))
	for _, r := range parsed.Value {
		results = append(results, IndexResult{
			Key:          r.Key,
			Succeeded:    r.Status,
			StatusCode:   r.StatusCode,
			ErrorMessage: r.ErrorMessage,
		})
	}
	return results, nil
}

type azureSearchResponse struct {
	Value []map[string]json.RawMessage `json:"value"`
}

// Search executes a search request, combining the lexical, vector, and
// semantic legs the request asks for.
func (a *AzureIndex) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		a.config.Endpoint, a.config.IndexName, a.config.APIVersion)

	body := map[string]any{}
	if req.Text != "" {
		text := req.Text
		if req.Phrase {
			text = `"` + strings.ReplaceAll(text, `"`, `\"`) + `"`
		}
		body["search"] = text
	}
	if len(req.SearchFields) > 0 {
		body["searchFields"] = strings.Join(req.SearchFields, ",")
	}
	if len(req.Select) > 0 {
		body["select"] = strings.Join(req.Select, ",")
	}
	if req.Top > 0 {
		body["top"] = req.Top
	}
	if filter := buildFilter(req.Filter); filter != "" {
		body["filter"] = filter
	}
	if len(req.Vector) > 0 {
		k := req.K
		if k <= 0 {
			k = req.Top
		}
		body["vectorQueries"] = []map[string]any{{
			"kind":   "vector",
			"vector": req.Vector,
			"k":      k,
			"fields": FieldVector,
		}}
	}
	if req.Semantic {
		body["queryType"] = "semantic"
		body["semanticConfiguration"] = a.config.SemanticConfiguration
	}

	var parsed azureSearchResponse
	if err := a.do(ctx, http.MethodPost, url, body, &parsed); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Value))
	for _, raw := range parsed.Value {
		hits = append(hits, parseAzureHit(raw))
	}
	return hits, nil
}

func parseAzureHit(raw map[string]json.RawMessage) Hit {
	var hit Hit
	unmarshalField(raw, "@search.score", &hit.Score)
	unmarshalField(raw, "@search.rerankerScore", &hit.RerankerScore)
	unmarshalField(raw, FieldChunkID, &hit.Document.ChunkID)
	unmarshalField(raw, FieldParentID, &hit.Document.ParentID)
	unmarshalField(raw, FieldTitle, &hit.Document.Title)
	unmarshalField(raw, FieldChunk, &hit.Document.Chunk)
	unmarshalField(raw, FieldMetadata, &hit.Document.Metadata)
	return hit
}

func unmarshalField(raw map[string]json.RawMessage, key string, dst any) {
	if data, ok := raw[key]; ok {
		_ = json.Unmarshal(data, dst)
	}
}

// buildFilter renders an OData equality filter, single quotes doubled per
// the OData escaping rule.
func buildFilter(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(filter))
	for _, field := range []string{FieldChunkID, FieldParentID, FieldTitle} {
		if value, ok := filter[field]; ok {
			clauses = append(clauses, fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''")))
		}
	}
	return strings.Join(clauses, " and ")
}

// do issues one REST call and decodes the response into out.
func (a *AzureIndex) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", a.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return qerrors.Backend("search service request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return qerrors.RateLimited(nil)
	// 207 is a partial indexing failure; the per-document results carry
	// the detail, so decode rather than fail.
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return qerrors.Backend(
			fmt.Sprintf("search service returned %d: %s", resp.StatusCode, string(snippet)), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return qerrors.Backend("decode search service response", err)
	}
	return nil
}

// Close releases idle connections.
func (a *AzureIndex) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
