package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

func newFeaturesCmd(opts *rootOptions) *cobra.Command {
	featuresCmd := &cobra.Command{
		Use:   "features",
		Short: "Inspect and toggle feature gates",
	}

	var repo string
	setCmd := &cobra.Command{
		Use:   "set <name> <true|false>",
		Short: "Set a feature gate globally or for one repository",
		Example: `  mergecheck features set mergeability_checks_logger true
  mergecheck features set mergeability_checks_logger false --repo octo/repo`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("gate value must be true or false, got %q", args[1])
			}
			a, err := openFeaturesApp(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			gate := model.FeatureGate{
				Name:         args[0],
				RepoFullName: repo,
				Enabled:      enabled,
				UpdatedAt:    time.Now().UTC(),
			}
			if err := a.gateStore.Set(cmd.Context(), gate); err != nil {
				return err
			}

			scope := repo
			if scope == model.GlobalScope {
				scope = "global"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s=%t (%s)\n", gate.Name, gate.Enabled, scope)
			return err
		},
	}
	setCmd.Flags().StringVar(&repo, "repo", model.GlobalScope, "Scope the gate to owner/repo instead of setting the global value")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored feature gate values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openFeaturesApp(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			gates, err := a.gateStore.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSCOPE\tENABLED\tUPDATED")
			for _, g := range gates {
				scope := g.RepoFullName
				if scope == model.GlobalScope {
					scope = "global"
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", g.Name, scope, g.Enabled, g.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	featuresCmd.AddCommand(setCmd, listCmd)
	return featuresCmd
}

func openFeaturesApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	logger, err := opts.newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), cfg, logger)
}
