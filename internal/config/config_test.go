package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvBackend, EnvDataDir,
		EnvSearchEndpoint, EnvSearchAPIKey, EnvSearchIndex,
		EnvOpenAIEndpoint, EnvOpenAIAPIKey, EnvOpenAIDeployment, EnvOpenAIAPIVersion,
		EnvMaxChars, EnvOverlap,
	} {
		// Setenv registers the restore, Unsetenv makes the key truly
		// absent so .env files can populate it.
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func setAzureEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvSearchEndpoint, "https://search.example.net")
	t.Setenv(EnvSearchAPIKey, "search-key")
	t.Setenv(EnvSearchIndex, "docs")
	t.Setenv(EnvOpenAIEndpoint, "https://openai.example.net")
	t.Setenv(EnvOpenAIAPIKey, "openai-key")
	t.Setenv(EnvOpenAIDeployment, "text-embedding-3-small")
}

func TestLoadAzureFromEnv(t *testing.T) {
	clearEnv(t)
	setAzureEnv(t)

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, BackendAzure, cfg.Backend)
	assert.Equal(t, "docs", cfg.IndexName)
	assert.Equal(t, "text-embedding-3-small", cfg.Deployment)
	assert.Equal(t, DefaultMaxChars, cfg.MaxChars)
	assert.Equal(t, DefaultOverlap, cfg.Overlap)
}

func TestLoadReportsAllMissingKeysAtOnce(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSearchEndpoint, "https://search.example.net")

	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
	assert.True(t, qerrors.HasCode(err, qerrors.ErrCodeConfigMissing))
	assert.Contains(t, err.Error(), EnvSearchAPIKey)
	assert.Contains(t, err.Error(), EnvOpenAIDeployment)
	assert.NotContains(t, err.Error(), EnvSearchEndpoint)
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quill.yaml"), []byte(
		"backend: local\nindex: notes\nmax_chars: 800\noverlap: 100\n"), 0o644))
	t.Setenv(EnvMaxChars, "900")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "notes", cfg.IndexName)
	// Environment wins over the file.
	assert.Equal(t, 900, cfg.MaxChars)
	assert.Equal(t, 100, cfg.Overlap)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"QUILL_BACKEND=local\nQUILL_DATA_DIR=/tmp/quill-test\n"), 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "/tmp/quill-test", cfg.DataDir)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "carrier-pigeon")

	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestLoadClampsInvalidOverlap(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "local")
	t.Setenv(EnvMaxChars, "500")
	t.Setenv(EnvOverlap, "600")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxChars)
	assert.Equal(t, DefaultOverlap, cfg.Overlap)
}

func TestLoadRejectsNonIntegerChunkSetting(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "local")
	t.Setenv(EnvMaxChars, "lots")

	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}
