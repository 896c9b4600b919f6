// Command agent runs one natural-language instruction against a repository
// using the tools published by the tool server.
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"issuebridge/internal/agent"
	"issuebridge/internal/app"
	"issuebridge/internal/config"
	"issuebridge/internal/llm"
	"issuebridge/internal/toolclient"
)

var (
	configPath string
	logLevel   string
	repoURL    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "issuebridge-agent [instruction]",
		Short: "Manage GitHub issues in plain language",
		Long: `Fetches the tool list from the tool server, binds it to local executors
and lets the configured model act on the instruction.

Examples:
  issuebridge-agent --repo https://github.com/octocat/hello-world "Create an issue: Fix login bug"
  issuebridge-agent --repo https://github.com/octocat/hello-world "List all open issues"`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Load(configPath, logLevel, "issuebridge-agent")
			if err != nil {
				return err
			}
			defer rt.Close()

			registry, err := rt.Registry()
			if err != nil {
				return err
			}
			reasoner, err := newReasoner(rt)
			if err != nil {
				return err
			}

			fetcher := toolclient.New(registry, toolclient.Options{
				URL:     rt.Config.Client.ToolServerURL,
				Timeout: rt.Config.Client.FetchTimeout,
				Logger:  rt.Logger,
			})
			shell := agent.NewShell(fetcher, reasoner,
				agent.WithRepoHost(rt.Config.Client.RepoHost),
				agent.WithShellLogger(rt.Logger),
			)

			fmt.Fprintln(cmd.OutOrStdout(), shell.Run(cmd.Context(), strings.Join(args, " "), repoURL))
			return nil
		},
	}
	rootCmd.Flags().StringVarP(&repoURL, "repo", "r", "", "GitHub repository URL, e.g. https://github.com/owner/name")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	_ = rootCmd.MarkFlagRequired("repo")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newReasoner(rt *app.Runtime) (agent.Reasoner, error) {
	cfg := rt.Config.Model
	if cfg.Provider == config.ProviderOffline {
		rt.Logger.Info().Msg("no model endpoint configured, using offline pattern reasoner")
		return agent.PatternReasoner{}, nil
	}
	r, err := llm.New(cfg, rt.Logger)
	if err != nil {
		return nil, err
	}
	return r, nil
}
