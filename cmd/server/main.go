// Command server publishes the issue tools over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"issuebridge/internal/app"
	"issuebridge/internal/auth"
	"issuebridge/internal/toolserver"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "issuebridge-server",
		Short: "Publish GitHub issue tools over HTTP",
		Long: `Serves the tool descriptor list on GET /tools and executes tools
through the JSON-RPC endpoint on POST /mcp.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(createServeCmd(), createTokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tool server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	rt, err := app.Load(configPath, logLevel, "issuebridge-server")
	if err != nil {
		return err
	}
	defer rt.Close()

	registry, err := rt.Registry()
	if err != nil {
		return err
	}
	cfg := rt.Config.Server
	rt.Logger.Info().
		Strs("modules", registry.ModuleNames()).
		Int("tools", len(registry.Tools())).
		Str("version", version).
		Msg("registry ready")

	srv := toolserver.New(ctx, registry, toolserver.Options{
		Addr:        cfg.Addr,
		Version:     version,
		Verifier:    auth.NewVerifier(cfg.JWTSecret),
		RateLimit:   cfg.RateLimit,
		TrustProxy:  cfg.TrustProxy,
		ToolTimeout: cfg.ToolTimeout,
		Logger:      rt.Logger,
	})
	return srv.ListenAndServe(ctx)
}

func createTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for POST /mcp",
		Long: `Signs a token with MCP_JWT_SECRET.

Examples:
  issuebridge-server token --subject ci-bot --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Load(configPath, logLevel, "issuebridge-server")
			if err != nil {
				return err
			}
			defer rt.Close()

			token, err := auth.NewVerifier(rt.Config.Server.JWTSecret).Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject, used as the rate limit key")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime; 0 issues a token without expiry")
	return cmd
}
