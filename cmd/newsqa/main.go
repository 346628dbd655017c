// Package main is the newsqa CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/newsqa/internal/cli"
	"github.com/hyperjump/newsqa/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	serverURL  string
	output     string
}

// loadConfig loads config from path. A missing file at the default path is not an
// error: defaults and environment overrides are used and the returned path is empty.
// Returns the config and the absolute path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		return config.Default(), "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, "", err
	}
	return cfg, abs, nil
}

func (o *rootOptions) format() (cli.OutputFormat, error) {
	return cli.ParseFormat(o.output)
}

// joinArgs joins positional args so multi-word queries work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "newsqa",
		Short:         "newsqa - news Q&A search with generation fallback",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringVar(&opts.serverURL, "server", "", "URL of a running newsqa server (empty = open the index directly)")
	pf.StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServerCmd(opts),
		newSearchCmd(opts),
		newGenerateCmd(opts),
		newIndexCmd(opts),
		newImportCmd(opts),
		newStatsCmd(opts),
		newDeleteCmd(opts),
		newCacheCmd(opts),
		newMCPCmd(opts),
		newChatCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsqa version %s\n", version)
		},
	}
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
