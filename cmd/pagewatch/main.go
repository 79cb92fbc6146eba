// Command pagewatch watches fragments of web pages and reports when they
// change.
//
// Usage:
//
//	pagewatch                                # same as "pagewatch run"
//	pagewatch run --config config/config.yml --pages config/pages.yml
//	pagewatch check shop                     # extract one page once and print it
//	pagewatch snapshots                      # list stored snapshots
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagewatch/config"
)

var (
	configPath string
	pagesPath  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pagewatch",
	Short: "pagewatch polls web pages and notifies when a watched fragment changes.",
	// No subcommand means run.
	RunE:          runMonitor,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultConfigPath, "process configuration file")
	flags.StringVar(&pagesPath, "pages", config.DefaultPagesPath, "watched pages file")
	flags.StringVar(&logLevel, "log-level", "", "override log_level: DEBUG, INFO, WARN, ERROR")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pagewatch:", err)
		os.Exit(1)
	}
}
