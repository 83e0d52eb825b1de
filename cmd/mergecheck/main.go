// Command mergecheck tracks GitHub pull requests and answers whether each one
// can be merged by running a configurable chain of mergeability checks.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/mergecheck/internal/config"
)

// errNotMergeable makes the check command exit non-zero without printing an
// error; the result document already says why.
var errNotMergeable = errors.New("merge request is not mergeable")

// exitNotMergeable is the exit status of a check that completed and failed.
const exitNotMergeable = 2

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dbPath   string
	logLevel string
}

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errNotMergeable):
		os.Exit(exitNotMergeable)
	default:
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "mergecheck",
		Short: "Merge request mergeability checks for GitHub repositories",
		Long: `mergecheck keeps a local copy of the open pull requests of watched
GitHub repositories and decides whether each one can be merged.

Configuration is read from MERGECHECK_* environment variables. Run
"mergecheck serve" for the REST API and background sync, or
"mergecheck check owner/repo 42" for a one-off evaluation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides MERGECHECK_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newMigrateCmd(opts),
		newFeaturesCmd(opts),
	)

	return rootCmd
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger returns a text logger on stderr at the configured level and makes
// it the process default.
func (o *rootOptions) newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}
