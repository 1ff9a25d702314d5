package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.WorkerPort, cfg.WorkerPort)
	assert.Equal(t, def.Projects, cfg.Projects)
	assert.InDelta(t, DefaultThreshold, cfg.Threshold, 1e-9)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
}

func TestLoadFrom_Settings(t *testing.T) {
	path := writeSettings(t, `{
  "TICKETSIM_WORKER_PORT": 40000,
  "TICKETSIM_THRESHOLD": 0.25,
  "TICKETSIM_PROJECTS": "PLAT, OPS",
  "TICKETSIM_ISSUE_TYPES": ["Bug", "Incident"],
  "TICKETSIM_CACHE_BACKEND": "redis",
  "TICKETSIM_REDIS_ADDR": "localhost:6379",
  "TICKETSIM_JIRA_URL": "https://example.atlassian.net",
  "TICKETSIM_SKIP_COMMENTS": true,
  "UNKNOWN_KEY": true
}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.WorkerPort)
	assert.InDelta(t, 0.25, cfg.Threshold, 1e-9)
	assert.Equal(t, []string{"PLAT", "OPS"}, cfg.Projects)
	assert.Equal(t, []string{"Bug", "Incident"}, cfg.IssueTypes)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.SkipComments)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := writeSettings(t, `{"TICKETSIM_MAX_RESULTS": 5, "TICKETSIM_JIRA_URL": "https://file.example", "TICKETSIM_SKIP_COMMENTS": true}`)
	t.Setenv("TICKETSIM_MAX_RESULTS", "7")
	t.Setenv("TICKETSIM_SKIP_COMMENTS", "false")
	t.Setenv("TICKETSIM_BATCH_DELAY_MS", "250")
	t.Setenv("JIRA_URL", "https://env.example")
	t.Setenv("JIRA_USERNAME", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "secret")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxResults)
	assert.Equal(t, 250, cfg.BatchDelayMs)
	assert.False(t, cfg.SkipComments)
	assert.Equal(t, "https://env.example", cfg.JiraURL)
	assert.Equal(t, "bot@example.com", cfg.JiraUsername)
	assert.Equal(t, "secret", cfg.JiraAPIToken)
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	_, err := LoadFrom(writeSettings(t, `{not json`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.TicketsFile = "tickets.json"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.WorkerPort = 0 }},
		{"threshold", func(c *Config) { c.Threshold = 1.2 }},
		{"group threshold", func(c *Config) { c.GroupThreshold = -0.1 }},
		{"max results", func(c *Config) { c.MaxResults = 0 }},
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"projects", func(c *Config) { c.Projects = nil }},
		{"redis without addr", func(c *Config) { c.CacheBackend = CacheRedis }},
		{"unknown backend", func(c *Config) { c.CacheBackend = "memcached" }},
		{"no source", func(c *Config) { c.TicketsFile = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a , ,b,"))
	assert.Empty(t, splitTrim(""))
}

func TestEnsureAll(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, EnsureAll())
	require.FileExists(t, SettingsPath())

	// The generated file loads and keeps its values.
	cfg, err := LoadFrom(SettingsPath())
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkerPort, cfg.WorkerPort)
	assert.Equal(t, []string{"PLAT", "XOP"}, cfg.Projects)

	// Existing settings are left alone.
	require.NoError(t, os.WriteFile(SettingsPath(), []byte(`{"TICKETSIM_MAX_RESULTS": 3}`), 0600))
	require.NoError(t, EnsureSettings())
	cfg, err = LoadFrom(SettingsPath())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxResults)
}
