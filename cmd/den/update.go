package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"den/internal/backend"
	"den/internal/pipeline"
)

func newUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		updateForce  bool
		updateBase   string
		updateDryRun bool
		updateReport string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-expand regions made stale by git changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			ctx := cmd.Context()

			var b backend.Backend
			if b, err = newBackend(ctx, a, a.cfg.Project.Root); err != nil {
				a.logger.Warn("expansion disabled", zap.Error(err))
				fmt.Printf("⚠️  Skipping expansion: %v\n", err)
			}

			sync := pipeline.NewIncrementalSync(a.cfg, b, a.logger)
			sync.BaseRef = updateBase
			sync.DryRun = updateDryRun
			sync.ReportPath = updateReport
			sync.Color = a.render.Color
			sync.Out = os.Stdout

			res, err := sync.Run(ctx, updateForce)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			if res.Report.Summary.FailedStages > 0 {
				return &exitError{code: exitFound}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&updateForce, "force", false, "Rebuild the index and expand every region")
	cmd.Flags().StringVar(&updateBase, "base", "HEAD", "Git revision to diff the working tree against")
	cmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "Compute the expansion without writing files")
	cmd.Flags().StringVar(&updateReport, "report", "", "Write a JSON run report to this path")
	return cmd
}

