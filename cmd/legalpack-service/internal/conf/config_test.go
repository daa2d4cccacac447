package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legalpack-service.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o644))
	return path
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 12000, cfg.Analysis.BatchTokenLimit)
	assert.Equal(t, 4096, cfg.Analysis.OutputTokenLimit)
	assert.Equal(t, 100, cfg.Extract.MinPageTextChars)
	assert.Equal(t, 50, cfg.Extract.MaxPDFPages)
}

func TestLoad_EnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("LEGALPACK_ANALYSIS_BATCH_TOKEN_LIMIT", "8000")
	t.Setenv("LEGALPACK_SERVER_HTTP_PORT", "7070")

	cfg, err := Load(writeConfigFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Analysis.BatchTokenLimit)
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("CLAUDE_API_KEY", "sk-test")
	t.Setenv("DB_PASSWORD", "hunter2")

	cfg, err := Load(writeConfigFile(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "hunter2", cfg.Database.Password)
}
