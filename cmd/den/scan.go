package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"den/internal/crawler"
	"den/internal/index"
	"den/internal/pipeline"
	"den/internal/report"
	"den/internal/storage"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var (
		scanFormat  string
		scanSave    bool
		scanStrict  bool
		scanChanged bool
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Find annotation regions and report their diagnostics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(scanFormat)
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
			indexer := index.NewIndexer(crawler.NewCrawler(a.crawlOptions(), a.logger), a.cfg.Scan.Jobs, a.logger)

			var x *index.Index
			if scanChanged {
				x, err = scanChangedFiles(ctx, a, indexer, root)
			} else {
				x, err = indexer.BuildIndex(ctx, root)
			}
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			a.logger.Debug("scan finished", zap.String("root", root), zap.Int("files", len(x.Files)))

			if scanSave {
				if err := saveScan(ctx, a, x, scanChanged); err != nil {
					return &exitError{code: exitFailure, err: err}
				}
			}

			if err := report.RenderScan(os.Stdout, x, format, a.render); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			return scanExit(x.Stats(), scanStrict)
		},
	}

	cmd.Flags().StringVarP(&scanFormat, "format", "f", "text", "Output format: text, json, table or markdown")
	cmd.Flags().BoolVar(&scanSave, "save", false, "Persist the results to the scan database")
	cmd.Flags().BoolVar(&scanStrict, "strict", false, "Exit with status 1 on warnings too")
	cmd.Flags().BoolVar(&scanChanged, "changed", false, "Only scan files changed since HEAD")
	return cmd
}

// scanChangedFiles indexes only the files git reports as changed. Deleted
// files are left out.
func scanChangedFiles(ctx context.Context, a *app, indexer *index.Indexer, root string) (*index.Index, error) {
	changes, err := pipeline.ChangedFiles(ctx, root, "HEAD", a.crawlOptions())
	if err != nil {
		return nil, err
	}
	x := index.NewIndex(root)
	var paths []string
	for _, ch := range changes {
		if !ch.Deleted {
			paths = append(paths, x.Abs(ch.Path))
		}
	}
	if err := indexer.IndexFiles(ctx, x, paths); err != nil {
		return nil, err
	}
	return x, nil
}

// saveScan replaces the stored snapshot after a full scan, or upserts the
// scanned files after a --changed scan.
func saveScan(ctx context.Context, a *app, x *index.Index, partial bool) error {
	store, err := storage.NewSQLiteStore(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if !partial {
		if err := store.SaveIndex(ctx, x); err != nil {
			return fmt.Errorf("failed to save index: %w", err)
		}
	} else {
		for _, f := range x.Files {
			if err := store.SaveFile(ctx, f); err != nil {
				return fmt.Errorf("failed to save %s: %w", f.Path, err)
			}
		}
	}
	a.logger.Info("saved scan", zap.String("db", a.cfg.Store.Path), zap.Int("files", len(x.Files)))
	return nil
}

func scanExit(s index.Stats, strict bool) error {
	switch {
	case s.Errors > 0:
		return &exitError{code: exitFailure}
	case s.Fatal > 0, strict && s.Warnings > 0:
		return &exitError{code: exitFound}
	default:
		return nil
	}
}
