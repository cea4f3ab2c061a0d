package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"den/internal/config"
	"den/internal/crawler"
	"den/internal/logging"
	"den/internal/report"
)

// Exit codes.
const (
	exitOK      = 0
	exitFound   = 1 // fatal region errors, or warnings under --strict
	exitFailure = 2 // bad invocation or I/O failure
)

// exitError carries an exit code out of a command. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	code := exitFailure
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			return code
		}
	}
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
	return code
}

// globalFlags holds the persistent flags of one invocation.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
	colorMode  string
}

// newRootCmd builds a fresh command tree, so flag values and contexts never
// carry over between invocations.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "den",
		Short:         "Scan and expand @den annotation regions in source files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&g.dbPath, "db", "d", "", "Path to the scan database (SQLite); overrides store.path")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().StringVar(&g.colorMode, "color", "auto", "Colorize output: auto, always or never")

	rootCmd.AddCommand(newScanCmd(g))
	rootCmd.AddCommand(newExpandCmd(g))
	rootCmd.AddCommand(newUpdateCmd(g))
	rootCmd.AddCommand(newInspectCmd(g))
	return rootCmd
}

// app is the per-invocation state shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	render report.Options
}

func (g *globalFlags) setup() (*app, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: fmt.Errorf("failed to load config: %w", err)}
	}
	if g.dbPath != "" {
		cfg.Store.Path = g.dbPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: fmt.Errorf("failed to create logger: %w", err)}
	}

	useColor, err := parseColor(g.colorMode)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}
	return &app{cfg: cfg, logger: logger, render: report.Options{Color: useColor}}, nil
}

func parseColor(mode string) (bool, error) {
	switch strings.ToLower(mode) {
	case "", "auto":
		return !color.NoColor, nil
	case "always":
		return true, nil
	case "never":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color %q (want auto, always or never)", mode)
	}
}

func (a *app) crawlOptions() crawler.Options {
	return crawler.Options{
		Extensions: a.cfg.Project.Extensions,
		Ignored:    a.cfg.Project.Ignore,
		Excludes:   a.cfg.Project.Exclude,
	}
}

// rootArg returns the project root from args, defaulting to the config.
func (a *app) rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Project.Root
}

func parseFormat(s string) (report.Format, error) {
	f, err := report.ParseFormat(s)
	if err != nil {
		return "", &exitError{code: exitFailure, err: err}
	}
	return f, nil
}
