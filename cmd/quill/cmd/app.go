package cmd

import (
	"github.com/quillsearch/quill/internal/config"
	"github.com/quillsearch/quill/internal/embed"
	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/searchidx"
)

// buildIndex constructs the search index the config selects.
func buildIndex(cfg *config.Config) (searchidx.Index, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return searchidx.NewLocalIndex(searchidx.LocalConfig{
			Dir:        cfg.DataDir,
			Dimensions: cfg.Dimensions,
		})
	default:
		return searchidx.NewAzureIndex(searchidx.AzureConfig{
			Endpoint:  cfg.SearchEndpoint,
			APIKey:    cfg.SearchAPIKey,
			IndexName: cfg.IndexName,
		})
	}
}

// buildEmbedder constructs the embedding client. Both backends embed through
// Azure OpenAI, so its settings are required here even when the index itself
// is local.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var missing []string
	for _, req := range []struct {
		value string
		key   string
	}{
		{cfg.OpenAIEndpoint, config.EnvOpenAIEndpoint},
		{cfg.OpenAIAPIKey, config.EnvOpenAIAPIKey},
		{cfg.Deployment, config.EnvOpenAIDeployment},
	} {
		if req.value == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return nil, qerrors.ConfigMissing(missing)
	}

	embedder, err := embed.NewAzureEmbedder(embed.AzureConfig{
		Endpoint:   cfg.OpenAIEndpoint,
		APIKey:     cfg.OpenAIAPIKey,
		Deployment: cfg.Deployment,
		APIVersion: cfg.OpenAIAPIVersion,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(embedder, embed.DefaultCacheSize), nil
}
