// Package config assembles runtime configuration from an optional .env
// file, an optional quill.yaml, and environment variables, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

// Backend selection values.
const (
	BackendAzure = "azure"
	BackendLocal = "local"
)

// Environment variable names.
const (
	EnvBackend = "QUILL_BACKEND"
	EnvDataDir = "QUILL_DATA_DIR"

	EnvSearchEndpoint = "AZURE_SEARCH_ENDPOINT"
	EnvSearchAPIKey   = "AZURE_SEARCH_API_KEY"
	EnvSearchIndex    = "AZURE_SEARCH_INDEX"

	EnvOpenAIEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvOpenAIAPIKey     = "AZURE_OPENAI_API_KEY"
	EnvOpenAIDeployment = "AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT"
	EnvOpenAIAPIVersion = "AZURE_OPENAI_API_VERSION"

	EnvMaxChars = "MAX_CHARS"
	EnvOverlap  = "OVERLAP"
)

// Chunking defaults.
const (
	DefaultMaxChars   = 1200
	DefaultOverlap    = 200
	DefaultDimensions = 1536
)

// Config is the resolved runtime configuration.
type Config struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`

	SearchEndpoint string `yaml:"search_endpoint"`
	SearchAPIKey   string `yaml:"-"`
	IndexName      string `yaml:"index"`

	OpenAIEndpoint   string `yaml:"openai_endpoint"`
	OpenAIAPIKey     string `yaml:"-"`
	Deployment       string `yaml:"embeddings_deployment"`
	OpenAIAPIVersion string `yaml:"openai_api_version"`

	MaxChars   int `yaml:"max_chars"`
	Overlap    int `yaml:"overlap"`
	Dimensions int `yaml:"dimensions"`
}

// Load resolves configuration for the current working directory: .env and
// quill.yaml next to the invocation, overridden by the environment.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom resolves configuration rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	// A missing .env is the common case, not an error.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := &Config{
		Backend:    BackendAzure,
		MaxChars:   DefaultMaxChars,
		Overlap:    DefaultOverlap,
		Dimensions: DefaultDimensions,
	}

	if err := cfg.applyFile(filepath.Join(dir, "quill.yaml")); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Backend, EnvBackend)
	setString(&c.DataDir, EnvDataDir)
	setString(&c.SearchEndpoint, EnvSearchEndpoint)
	setString(&c.SearchAPIKey, EnvSearchAPIKey)
	setString(&c.IndexName, EnvSearchIndex)
	setString(&c.OpenAIEndpoint, EnvOpenAIEndpoint)
	setString(&c.OpenAIAPIKey, EnvOpenAIAPIKey)
	setString(&c.Deployment, EnvOpenAIDeployment)
	setString(&c.OpenAIAPIVersion, EnvOpenAIAPIVersion)

	for _, intVar := range []struct {
		dst *int
		key string
	}{
		{&c.MaxChars, EnvMaxChars},
		{&c.Overlap, EnvOverlap},
	} {
		v := os.Getenv(intVar.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", intVar.key, v)
		}
		*intVar.dst = parsed
	}
	return nil
}

// finalize validates the assembled configuration. Every missing required
// key is reported at once so a user can fix them in a single pass.
func (c *Config) finalize() error {
	switch c.Backend {
	case BackendAzure:
		var missing []string
		for _, req := range []struct {
			value string
			key   string
		}{
			{c.SearchEndpoint, EnvSearchEndpoint},
			{c.SearchAPIKey, EnvSearchAPIKey},
			{c.IndexName, EnvSearchIndex},
			{c.OpenAIEndpoint, EnvOpenAIEndpoint},
			{c.OpenAIAPIKey, EnvOpenAIAPIKey},
			{c.Deployment, EnvOpenAIDeployment},
		} {
			if req.value == "" {
				missing = append(missing, req.key)
			}
		}
		if len(missing) > 0 {
			return qerrors.ConfigMissing(missing)
		}
	case BackendLocal:
		if c.IndexName == "" {
			c.IndexName = "quill"
		}
		if c.DataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			c.DataDir = filepath.Join(home, ".quill")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendAzure, BackendLocal)
	}

	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChars {
		c.Overlap = DefaultOverlap
	}
	return nil
}
