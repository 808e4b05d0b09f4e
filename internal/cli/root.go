// Package cli implements the research-chat commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"research-chat/internal/config"
)

var flags overrides

// RootCmd is the top-level command. Without a subcommand it starts an
// interactive session: the full-screen UI on a terminal, a line-oriented
// loop when stdin or stdout is redirected.
var RootCmd = &cobra.Command{
	Use:          "research-chat",
	Short:        "Chat with a research agent about papers",
	Long:         "A terminal client for a research agent service. Ask questions, search ArXiv and upload PDFs for retrieval.",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runInteractive,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "Agent service URL (default: $RESEARCH_CHAT_BASE_URL or "+config.DefaultBaseURL+")")
	RootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: $LOG_LEVEL or info)")
	RootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Append logs to this file (default: $RESEARCH_CHAT_LOG_FILE)")
}

// overrides are command-line values that take precedence over the
// environment.
type overrides struct {
	baseURL  string
	logLevel string
	logFile  string
}

func (o overrides) apply(cfg config.Config) config.Config {
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
		cfg.BaseURLParam = ""
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	return cfg
}

func loadConfig() (config.Config, error) {
	cfg := flags.apply(config.Load())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
