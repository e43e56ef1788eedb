package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedzouaghi/jira-scripts/internal/config"
)

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte("projects: NOOR OPS HR\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"NOOR", "OPS", "HR"}, cfg.ProjectIDs())
	assert.Empty(t, cfg.Server)
}

func TestFromYAMLServerOverride(t *testing.T) {
	cfg, err := config.FromYAML([]byte("projects: NOOR\nserver: https://example.atlassian.net\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.atlassian.net", cfg.Server)
}

func TestFromYAMLMissingProjects(t *testing.T) {
	for _, raw := range []string{"", "projects: \"\"\n", "server: https://x\n", "projects: \"   \"\n"} {
		_, err := config.FromYAML([]byte(raw))
		require.Error(t, err, "raw=%q", raw)
		assert.True(t, errors.Is(err, config.ErrNoProjects), "raw=%q", raw)
	}
}

func TestFromYAMLInvalid(t *testing.T) {
	_, err := config.FromYAML([]byte("projects: [unclosed\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, config.ErrNoProjects))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config.GenerateDefault("NOOR", "OPS")), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOOR", "OPS"}, cfg.ProjectIDs())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
