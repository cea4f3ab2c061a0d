package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"den/internal/backend"
	"den/internal/crawler"
	"den/internal/generator"
	"den/internal/index"
	"den/internal/report"
)

func newExpandCmd(g *globalFlags) *cobra.Command {
	var (
		expandDryRun bool
		expandNames  []string
		expandFormat string
	)

	cmd := &cobra.Command{
		Use:   "expand [path]",
		Short: "Generate the output of every region with the configured backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(expandFormat)
			if err != nil {
				return err
			}
			a, err := g.setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			ctx := cmd.Context()
			root := a.rootArg(args)

			b, err := newBackend(ctx, a, root)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			indexer := index.NewIndexer(crawler.NewCrawler(a.crawlOptions(), a.logger), a.cfg.Scan.Jobs, a.logger)
			x, err := indexer.BuildIndex(ctx, root)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			opts := generator.Options{DryRun: expandDryRun, Jobs: a.cfg.Scan.Jobs}
			if len(expandNames) > 0 {
				opts.Select = generator.ByName(expandNames...)
			}
			outcomes, err := generator.NewExpander(b, opts, a.logger).ExpandIndex(ctx, x)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			if err := report.RenderExpansion(os.Stdout, outcomes, format, a.render); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			if sum := report.SummarizeExpansion(outcomes); sum.Failed > 0 || sum.Skipped > 0 {
				return &exitError{code: exitFound}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&expandDryRun, "dry-run", false, "Compute the expansion without writing files")
	cmd.Flags().StringSliceVarP(&expandNames, "name", "n", nil, "Only expand regions with these invocation names")
	cmd.Flags().StringVarP(&expandFormat, "format", "f", "text", "Output format: text, json, table or markdown")
	return cmd
}

// newBackend builds the configured backend. Commands run from the project
// root.
func newBackend(ctx context.Context, a *app, root string) (backend.Backend, error) {
	b, err := backend.NewBackend(ctx, backend.Options{
		Provider: a.cfg.Backend.Provider,
		APIKey:   a.cfg.Backend.APIKey,
		Model:    a.cfg.Backend.Model,
		BaseURL:  a.cfg.Backend.BaseURL,
		Command:  a.cfg.Backend.Command,
		Timeout:  a.cfg.Backend.Timeout,
		Dir:      root,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", a.cfg.Backend.Provider, err)
	}
	return b, nil
}
