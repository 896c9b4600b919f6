// Package config loads process settings for the tool server and the agent.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file,
// the environment (a .env file in the working directory is loaded into the
// environment first and never overrides variables already set).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"issuebridge/internal/observability"
)

// Model providers.
const (
	ProviderAzure   = "azure"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

// Config is the full process configuration.
type Config struct {
	GitHub GitHubConfig             `yaml:"github"`
	Server ServerConfig             `yaml:"server"`
	Client ClientConfig             `yaml:"client"`
	Model  ModelConfig              `yaml:"model"`
	Log    LogConfig                `yaml:"log"`
	Loki   observability.LokiConfig `yaml:"loki"`
}

// GitHubConfig holds the upstream credential and API root.
type GitHubConfig struct {
	Token   string        `yaml:"token"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	JWTSecret   string        `yaml:"jwt_secret"`
	// RateLimit is the per-caller requests-per-second limit on /mcp; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// ClientConfig configures the agent's view of the tool server.
type ClientConfig struct {
	ToolServerURL string        `yaml:"tool_server_url"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	RepoHost      string        `yaml:"repo_host"`
}

// ModelConfig selects the reasoning backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name"`
	Temperature float32 `yaml:"temperature"`
	MaxRounds   int     `yaml:"max_rounds"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:  "https://api.github.com",
			Timeout: 20 * time.Second,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			ToolTimeout: 30 * time.Second,
			RateLimit:   10,
		},
		Client: ClientConfig{
			ToolServerURL: "http://localhost:8000/tools",
			FetchTimeout:  10 * time.Second,
			RepoHost:      "github.com",
		},
		Model: ModelConfig{
			Name:        "llama3.1",
			Temperature: 0.6,
			MaxRounds:   8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("GITHUB_TOKEN", &cfg.GitHub.Token)
	e.str("GITHUB_API_URL", &cfg.GitHub.APIURL)
	e.duration("GITHUB_TIMEOUT", &cfg.GitHub.Timeout)

	e.str("TOOL_SERVER_ADDR", &cfg.Server.Addr)
	e.duration("TOOL_TIMEOUT", &cfg.Server.ToolTimeout)
	e.str("MCP_JWT_SECRET", &cfg.Server.JWTSecret)
	e.integer("MCP_RATE_LIMIT", &cfg.Server.RateLimit)
	e.boolean("TOOL_SERVER_TRUST_PROXY", &cfg.Server.TrustProxy)

	e.str("TOOL_SERVER_URL", &cfg.Client.ToolServerURL)
	e.duration("FETCH_TIMEOUT", &cfg.Client.FetchTimeout)
	e.str("GITHUB_HOST", &cfg.Client.RepoHost)

	e.str("MODEL_PROVIDER", &cfg.Model.Provider)
	e.str("MODEL_ENDPOINT", &cfg.Model.Endpoint)
	e.str("MODEL_API_KEY", &cfg.Model.APIKey)
	e.str("OLLAMA_MODEL", &cfg.Model.Name)
	e.str("MODEL_NAME", &cfg.Model.Name)
	e.float("MODEL_TEMPERATURE", &cfg.Model.Temperature)
	e.integer("MODEL_MAX_ROUNDS", &cfg.Model.MaxRounds)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	e.str("GRAFANA_LOKI_URL", &cfg.Loki.URL)
	e.str("GRAFANA_LOKI_USER", &cfg.Loki.User)
	e.str("GRAFANA_LOKI_API_KEY", &cfg.Loki.APIKey)
	e.str("INSTANCE_ID", &cfg.Loki.Instance)

	return e.err
}

// Validate checks cross-field constraints and fills the model provider when
// it was left empty.
func (c *Config) Validate() error {
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOffline
		if c.Model.Endpoint != "" {
			c.Model.Provider = ProviderOpenAI
		}
	}

	switch c.Model.Provider {
	case ProviderOffline:
	case ProviderAzure, ProviderOpenAI:
		if c.Model.Endpoint == "" {
			return errors.Errorf("model provider %q requires MODEL_ENDPOINT", c.Model.Provider)
		}
		if c.Model.Name == "" {
			return errors.Errorf("model provider %q requires a model name", c.Model.Provider)
		}
	default:
		return errors.Errorf("unknown model provider %q (want azure, openai or offline)", c.Model.Provider)
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return errors.Errorf("model temperature %v out of range [0, 2]", c.Model.Temperature)
	}
	if c.Model.MaxRounds <= 0 {
		return errors.Errorf("model max rounds must be positive, got %d", c.Model.MaxRounds)
	}
	for name, d := range map[string]time.Duration{
		"tool timeout":   c.Server.ToolTimeout,
		"fetch timeout":  c.Client.FetchTimeout,
		"github timeout": c.GitHub.Timeout,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Server.RateLimit < 0 {
		return errors.Errorf("rate limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Client.RepoHost == "" {
		return errors.New("repository host must not be empty")
	}
	return nil
}

// envReader applies environment overrides and keeps the first parse error.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "invalid %s", key)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are seconds
		n, nerr := strconv.Atoi(v)
		if nerr != nil {
			e.fail(key, err)
			return
		}
		d = time.Duration(n) * time.Second
	}
	*dst = d
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) float(key string, dst *float32) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = float32(f)
}
