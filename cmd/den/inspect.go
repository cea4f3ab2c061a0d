package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"den/internal/extractor"
	"den/internal/index"
	"den/internal/report"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	var inspectFormat string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the regions of a file and the declarations in their output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(inspectFormat)
			if err != nil {
				return err
			}
			a, err := g.setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			parsed := index.ParseFile(path, src)
			if parsed.Fatal != nil {
				return &exitError{code: exitFound, err: fmt.Errorf("%s: %w", path, parsed.Fatal.Err())}
			}

			var units []*extractor.CodeUnit
			if ext, err := extractor.ForPath(path); err != nil {
				a.logger.Debug("no declaration extractor", zap.String("path", path), zap.Error(err))
			} else if units, err = ext.ExtractFromSource(cmd.Context(), path, src); err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			regions := make([]report.InspectedRegion, 0, len(parsed.Regions))
			for _, r := range parsed.Regions {
				ir := report.InspectedRegion{Region: r, Units: []*extractor.CodeUnit{}}
				if span, ok := r.OutputSpan(); ok {
					ir.Units = append(ir.Units, extractor.Within(units, span)...)
				}
				regions = append(regions, ir)
			}

			if err := report.RenderInspect(os.Stdout, path, regions, format, a.render); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format: text, json, table or markdown")
	return cmd
}

