package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agents",
		Short: "Realtime API Agents console server",
		Long: `agents serves the Realtime API Agents console: a page that picks an agent
roster from the agentConfig query parameter, lets the user choose an agent and
drives the session toolbar, transcript and events pane over a WebSocket.

Run without a subcommand to start the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCommand,
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().String("config", defaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	serveCmd := &cobra.Command{
		Use:           "serve",
		Short:         "Start the console server (default)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCommand,
	}

	rostersCmd := &cobra.Command{
		Use:           "rosters",
		Short:         "List the configured agent rosters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          rostersCommand,
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve [url-or-query]",
		Short: "Show how a console URL resolves to a roster",
		Example: `  agents resolve "?agentConfig=customerServiceRetail"
  agents resolve "http://localhost:3000/?agentConfig=bogus&query=hi"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          resolveCommand,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(serveCmd, rostersCmd, resolveCmd, versionCmd)
	return rootCmd
}

// defaultConfigPath returns $REALTIMEAGENTS_CONFIG or ~/.realtime-agents/config.yaml.
func defaultConfigPath() string {
	if p := os.Getenv("REALTIMEAGENTS_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".realtime-agents", "config.yaml")
}
