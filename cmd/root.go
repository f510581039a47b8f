package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sara3/tesla-mcp/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tesla-mcp",
	Short: "MCP gateway for the Tesla Fleet API",
	Long: `tesla-mcp exposes Tesla vehicle queries and commands as MCP tools
over SSE and streamable HTTP transports, with an OAuth 2.1 relay that
lets MCP clients authorize against a user's Tesla account.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Running with no subcommand starts the gateway.
		return runServe(cmd, args)
	},
}

// SetVersion sets the version for the root command. Called from main
// to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI.
func Execute() {
	cobra.OnInitialize(initLogging)
	rootCmd.SetVersionTemplate(`{{printf "tesla-mcp version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogging configures the global zerolog logger. DEV gets a human
// console writer at debug level; everything else gets JSON at info.
func initLogging() {
	env := config.EnvVars{}.GetEnv()
	if env == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
