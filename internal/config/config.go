// Package config provides configuration management for ticketsim.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 37780

	// DefaultThreshold is the default inclusion threshold.
	DefaultThreshold = 0.3

	// DefaultGroupThreshold is the default grouping threshold.
	DefaultGroupThreshold = 0.3
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// DefaultProjects are the projects searched for candidates.
var DefaultProjects = []string{"PLAT", "XOP"}

// DefaultIssueTypes are the defect-like issue types searched for candidates.
var DefaultIssueTypes = []string{"Bug", "Customer-Incident", "Customer-Defect"}

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerHost     string  `json:"worker_host"`
	WorkerPort     int     `json:"worker_port"`
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`
	LogLevel       string  `json:"log_level"`
	AuthToken      string  `json:"-"` // Required on /api routes when set

	// Ticket source settings. TicketsFile, when set, replaces Jira with a
	// JSON fixture of tickets.
	JiraURL        string `json:"jira_url"`
	JiraUsername   string `json:"jira_username"`
	JiraAPIToken   string `json:"-"`
	JiraTimeoutSec int    `json:"jira_timeout_sec"`
	TicketsFile    string `json:"tickets_file"`

	// Vocabulary overlay file (YAML), watched for changes by the worker
	VocabPath string `json:"vocab_path"`

	// Result cache settings
	CacheBackend  string `json:"cache_backend"` // memory, redis, none
	RedisAddr     string `json:"redis_addr"`
	CacheTTLSec   int    `json:"cache_ttl_sec"`
	CacheMaxSize  int    `json:"cache_max_size"`
	CacheKeyspace string `json:"cache_keyspace"`

	// Analysis settings
	Projects        []string `json:"projects"`
	IssueTypes      []string `json:"issue_types"`
	Threshold       float64  `json:"threshold"`       // 0.0-1.0, minimum overall score for inclusion
	MaxResults      int      `json:"max_results"`     // Max ranked results per analysis
	MaxQueries      int      `json:"max_queries"`     // Max seeded sub-queries per analysis
	ResultsPerQuery int      `json:"results_per_query"`
	MetadataWeight  float64  `json:"metadata_weight"` // Capped by the scoring config validation
	BatchSize       int      `json:"batch_size"`
	BatchDelayMs    int      `json:"batch_delay_ms"`
	GroupThreshold  float64  `json:"group_threshold"`
	GroupMaxTickets int      `json:"group_max_tickets"`
	SkipComments    bool     `json:"skip_comments"` // Don't mine candidate comments for fixes
}

// DataDir returns the data directory path (~/.ticketsim).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ticketsim")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "TICKETSIM_WORKER_PORT": 37780,
  "TICKETSIM_THRESHOLD": 0.3,
  "TICKETSIM_MAX_RESULTS": 10,
  "TICKETSIM_CACHE_BACKEND": "memory",
  "TICKETSIM_PROJECTS": "PLAT,XOP"
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerHost:      "127.0.0.1",
		WorkerPort:      DefaultWorkerPort,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		LogLevel:        "info",
		JiraTimeoutSec:  30,
		CacheBackend:    CacheMemory,
		CacheTTLSec:     600,
		CacheMaxSize:    200,
		CacheKeyspace:   "ticketsim:",
		Projects:        DefaultProjects,
		IssueTypes:      DefaultIssueTypes,
		Threshold:       DefaultThreshold,
		MaxResults:      10,
		MaxQueries:      25,
		ResultsPerQuery: 50,
		MetadataWeight:  0,
		BatchSize:       5,
		BatchDelayMs:    1000,
		GroupThreshold:  DefaultGroupThreshold,
		GroupMaxTickets: 200,
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(SettingsPath())
}

// LoadFrom loads configuration from the given settings file. A missing file
// yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var settings map[string]any
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
		cfg.apply(func(key string) (any, bool) {
			v, ok := settings[key]
			return v, ok
		})
	case !os.IsNotExist(err):
		return nil, err
	}

	cfg.apply(func(key string) (any, bool) {
		return os.LookupEnv(key)
	})
	cfg.applyJiraEnv()
	return cfg, nil
}

// apply maps TICKETSIM_* settings onto the config. lookup returns either the
// decoded JSON value or an environment string.
func (c *Config) apply(lookup func(key string) (any, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			if s, ok := v.(string); ok && s != "" {
				*dst = s
			}
		}
	}
	num := func(key string, set func(float64)) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		switch n := v.(type) {
		case float64:
			set(n)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				set(f)
			}
		}
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		switch b := v.(type) {
		case bool:
			*dst = b
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				*dst = parsed
			}
		}
	}
	list := func(key string, dst *[]string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		switch l := v.(type) {
		case string:
			if parts := splitTrim(l); len(parts) > 0 {
				*dst = parts
			}
		case []any:
			parts := make([]string, 0, len(l))
			for _, item := range l {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			if len(parts) > 0 {
				*dst = parts
			}
		}
	}

	str("TICKETSIM_WORKER_HOST", &c.WorkerHost)
	num("TICKETSIM_WORKER_PORT", func(v float64) { c.WorkerPort = int(v) })
	num("TICKETSIM_RATE_LIMIT_RPS", func(v float64) { c.RateLimitRPS = v })
	num("TICKETSIM_RATE_LIMIT_BURST", func(v float64) { c.RateLimitBurst = int(v) })
	str("TICKETSIM_LOG_LEVEL", &c.LogLevel)
	str("TICKETSIM_AUTH_TOKEN", &c.AuthToken)

	str("TICKETSIM_JIRA_URL", &c.JiraURL)
	str("TICKETSIM_JIRA_USERNAME", &c.JiraUsername)
	str("TICKETSIM_JIRA_API_TOKEN", &c.JiraAPIToken)
	num("TICKETSIM_JIRA_TIMEOUT_SEC", func(v float64) { c.JiraTimeoutSec = int(v) })
	str("TICKETSIM_TICKETS_FILE", &c.TicketsFile)
	str("TICKETSIM_VOCAB_PATH", &c.VocabPath)

	str("TICKETSIM_CACHE_BACKEND", &c.CacheBackend)
	str("TICKETSIM_REDIS_ADDR", &c.RedisAddr)
	num("TICKETSIM_CACHE_TTL_SEC", func(v float64) { c.CacheTTLSec = int(v) })
	num("TICKETSIM_CACHE_MAX_SIZE", func(v float64) { c.CacheMaxSize = int(v) })
	str("TICKETSIM_CACHE_KEYSPACE", &c.CacheKeyspace)

	list("TICKETSIM_PROJECTS", &c.Projects)
	list("TICKETSIM_ISSUE_TYPES", &c.IssueTypes)
	num("TICKETSIM_THRESHOLD", func(v float64) { c.Threshold = v })
	num("TICKETSIM_MAX_RESULTS", func(v float64) { c.MaxResults = int(v) })
	num("TICKETSIM_MAX_QUERIES", func(v float64) { c.MaxQueries = int(v) })
	num("TICKETSIM_RESULTS_PER_QUERY", func(v float64) { c.ResultsPerQuery = int(v) })
	num("TICKETSIM_METADATA_WEIGHT", func(v float64) { c.MetadataWeight = v })
	num("TICKETSIM_BATCH_SIZE", func(v float64) { c.BatchSize = int(v) })
	num("TICKETSIM_BATCH_DELAY_MS", func(v float64) { c.BatchDelayMs = int(v) })
	num("TICKETSIM_GROUP_THRESHOLD", func(v float64) { c.GroupThreshold = v })
	num("TICKETSIM_GROUP_MAX_TICKETS", func(v float64) { c.GroupMaxTickets = int(v) })
	flag("TICKETSIM_SKIP_COMMENTS", &c.SkipComments)
}

// applyJiraEnv applies the conventional Jira environment variables.
func (c *Config) applyJiraEnv() {
	if v := os.Getenv("JIRA_URL"); v != "" {
		c.JiraURL = v
	}
	if v := os.Getenv("JIRA_USERNAME"); v != "" {
		c.JiraUsername = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		c.JiraAPIToken = v
	}
}

// Validate checks ranges and required combinations.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		errs = append(errs, fmt.Errorf("worker port %d out of range", c.WorkerPort))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %v outside [0, 1]", c.Threshold))
	}
	if c.GroupThreshold < 0 || c.GroupThreshold > 1 {
		errs = append(errs, fmt.Errorf("group threshold %v outside [0, 1]", c.GroupThreshold))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, errors.New("max results must be positive"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.BatchDelayMs < 0 {
		errs = append(errs, errors.New("batch delay must not be negative"))
	}
	if len(c.Projects) == 0 {
		errs = append(errs, errors.New("at least one project is required"))
	}
	switch c.CacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis cache requires TICKETSIM_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if c.TicketsFile == "" && c.JiraURL == "" {
		errs = append(errs, errors.New("either JIRA_URL or TICKETSIM_TICKETS_FILE is required"))
	}
	return errors.Join(errs...)
}

// splitTrim splits a comma-separated string and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
