// Package app holds the process bootstrap shared by cmd/server and cmd/agent.
package app

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"

	"issuebridge/internal/config"
	"issuebridge/internal/modules"
	"issuebridge/internal/modules/github"
	"issuebridge/internal/observability"
	"issuebridge/pkg/githubapi"
)

// Runtime is a loaded configuration with its logger and event sink.
type Runtime struct {
	Config *config.Config
	Logger zerolog.Logger
	loki   *observability.LokiClient
}

// Load reads configuration from configPath (optional) and the environment
// and builds the logger. A non-empty logLevel overrides the configured one.
func Load(configPath, logLevel, app string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr).
		With().Str("app", app).Logger()

	lokiCfg := cfg.Loki
	if lokiCfg.App == "" {
		lokiCfg.App = app
	}
	return &Runtime{
		Config: cfg,
		Logger: logger,
		loki:   observability.InitLoki(lokiCfg, logger),
	}, nil
}

// Registry builds the issue executors against the configured GitHub API.
func (rt *Runtime) Registry() (*modules.Registry, error) {
	client, err := githubapi.NewClient(githubapi.Options{
		Token:   rt.Config.GitHub.Token,
		BaseURL: rt.Config.GitHub.APIURL,
		Timeout: rt.Config.GitHub.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create github client")
	}
	if rt.Config.GitHub.Token == "" {
		rt.Logger.Warn().Msg("GITHUB_TOKEN is not set, upstream calls will be unauthenticated")
	}

	mod, err := github.New(client, rt.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "create github module")
	}
	reg, err := modules.NewRegistry([]modules.Module{mod},
		modules.WithTimeout(rt.Config.Server.ToolTimeout),
		modules.WithLogger(rt.Logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build registry")
	}
	return reg, nil
}

// Close flushes pending log events.
func (rt *Runtime) Close() {
	rt.loki.Flush()
}
