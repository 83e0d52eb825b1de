package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mergecheck/internal/application"
	"github.com/ericfisherdev/mergecheck/internal/application/mergeability"
	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

type checkOptions struct {
	checks     []string
	params     []string
	executeAll bool
}

// checkOutput is the document printed by the check command.
type checkOutput struct {
	Repository    string              `json:"repository"`
	Number        int                 `json:"number"`
	Mergeable     bool                `json:"mergeable"`
	FailureReason string              `json:"failure_reason"`
	Results       []model.CheckResult `json:"results"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	co := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <owner/repo> <number>",
		Short: "Evaluate the mergeability of a tracked pull request",
		Long: `Runs the mergeability checks against the stored state of a pull request
and prints the results as JSON. The pull request must have been synced by
"mergecheck serve" first.

Exits 0 when the pull request is mergeable and 2 when a check failed.`,
		Example: `  mergecheck check octo/repo 42
  mergecheck check octo/repo 42 --checks open,conflict --execute-all
  mergecheck check octo/repo 42 --param skip_approved_check=true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, co, args)
		},
	}

	cmd.Flags().StringSliceVar(&co.checks, "checks", nil, "Comma-separated check identities in run order (default: configured checks)")
	cmd.Flags().StringArrayVar(&co.params, "param", nil, "Check parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&co.executeAll, "execute-all", false, "Keep running checks after the first failure")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, co *checkOptions, args []string) error {
	repo := args[0]
	if owner, name, ok := strings.Cut(repo, "/"); !ok || owner == "" || name == "" {
		return fmt.Errorf("repository must be owner/repo, got %q", repo)
	}
	number, err := strconv.Atoi(args[1])
	if err != nil || number <= 0 {
		return fmt.Errorf("pull request number must be a positive integer, got %q", args[1])
	}
	params, err := parseParams(co.params)
	if err != nil {
		return err
	}

	logger, err := opts.newLogger()
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			logger.Error("error closing storage", "error", closeErr)
		}
	}()

	result, err := a.mergeSvc.Run(cmd.Context(), repo, number, application.RunRequest{
		Checks:     co.checks,
		Params:     params,
		ExecuteAll: co.executeAll,
	})
	if err != nil {
		return err
	}

	if err := writeCheckOutput(cmd.OutOrStdout(), repo, number, result); err != nil {
		return err
	}
	if !result.Success() {
		return errNotMergeable
	}
	return nil
}

func writeCheckOutput(w io.Writer, repo string, number int, result *mergeability.RunResult) error {
	results := result.Results
	if results == nil {
		results = []model.CheckResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(checkOutput{
		Repository:    repo,
		Number:        number,
		Mergeable:     result.Success(),
		FailureReason: result.FailureReason,
		Results:       results,
	})
}

// parseParams turns key=value pairs into check parameters. Values stay
// strings; checks parse them as needed.
func parseParams(pairs []string) (mergeability.Params, error) {
	params := make(mergeability.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
