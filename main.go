// Package main implements cfn-template-manager, an MCP server that deploys
// AWS CloudFormation stacks from a curated git repository of templates.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thedevopsstore/cfn-template-manager/internal/cfn"
)

// Version information (set via ldflags during build).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagTransport string
	flagAddr      string
	flagRepoURL   string
	flagLocalPath string
	flagRegion    string
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cfn-template-manager",
	Short: "MCP server for CloudFormation template deployment",
	Long: `cfn-template-manager serves curated CloudFormation templates over the
Model Context Protocol. It syncs templates from a git repository, extracts
and validates their parameter schemas, and drives deployments through the
change set preview/apply lifecycle.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cfn-template-manager version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().StringVar(&flagTransport, "transport", "stdio", "MCP transport: stdio or http")
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address for the http transport")
	rootCmd.Flags().StringVar(&flagRepoURL, "repo-url", "", "git remote holding templates (overrides CFN_TEMPLATE_REPO_URL)")
	rootCmd.Flags().StringVar(&flagLocalPath, "local-path", "", "template clone path or standalone template directory (overrides CFN_TEMPLATE_LOCAL_PATH)")
	rootCmd.Flags().StringVar(&flagRegion, "region", "", "AWS region deployments target (overrides AWS_REGION)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.Flags().StringVar(&flagLogFormat, "log-format", "json", "log format: json or console")
}

func run(cmd *cobra.Command, _ []string) error {
	// Logs go to stderr: stdout belongs to the stdio MCP transport.
	log := newLogger(flagLogLevel, flagLogFormat)

	cfg := cfn.ConfigFromEnv()
	if flagRepoURL != "" {
		cfg.RepoURL = flagRepoURL
	}
	if flagLocalPath != "" {
		cfg.LocalPath = flagLocalPath
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}

	for _, w := range cfn.DiagnoseConfig(cfg) {
		log.Warn().Str("category", w.Category).Str("hint", w.Hint).Msg(w.Message)
	}

	manager, err := cfn.NewManager(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	srv := NewServer(manager)
	switch flagTransport {
	case "stdio":
		log.Info().Str("transport", "stdio").Msg("serving MCP")
		return srv.ServeStdio()
	case "http":
		log.Info().Str("transport", "http").Str("addr", flagAddr).Msg("serving MCP")
		return srv.ServeHTTP(flagAddr)
	default:
		return fmt.Errorf("unknown transport %q: use stdio or http", flagTransport)
	}
}

// newLogger builds the root zerolog logger from the CLI flags.
func newLogger(level, format string) zerolog.Logger {
	var out = os.Stderr
	var logger zerolog.Logger
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	switch level {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}
