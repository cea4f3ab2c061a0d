package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"den/internal/analysis"
	"den/internal/backend"
	"den/internal/config"
	"den/internal/crawler"
	"den/internal/generator"
	"den/internal/git"
	"den/internal/index"
	"den/internal/logging"
	"den/internal/report"
	"den/internal/storage"
)

// IncrementalSync brings generated region output up to date with the
// working tree: it finds changed files with git, reindexes them, works out
// which regions went stale and expands those again.
type IncrementalSync struct {
	Root       string
	DBPath     string
	BaseRef    string
	DryRun     bool
	Color      bool
	ReportPath string // run report JSON; empty skips it
	Jobs       int
	Crawl      crawler.Options
	Backend    backend.Backend // nil skips expansion
	Out        io.Writer
	Logger     *zap.Logger
}

// Result is what one run found and did.
type Result struct {
	FullResync bool
	Changes    []git.ChangedFile // paths relative to Root
	Index      *index.Index
	Impact     *analysis.ImpactReport
	Outcomes   []*generator.FileOutcome
	Report     *report.RunReport
}

type updatePlan struct {
	Changes    []git.ChangedFile
	FullResync bool
}

func NewIncrementalSync(cfg *config.Config, b backend.Backend, logger *zap.Logger) *IncrementalSync {
	return &IncrementalSync{
		Root:    cfg.Project.Root,
		DBPath:  cfg.Store.Path,
		BaseRef: "HEAD",
		Jobs:    cfg.Scan.Jobs,
		Crawl: crawler.Options{
			Extensions: cfg.Project.Extensions,
			Ignored:    cfg.Project.Ignore,
			Excludes:   cfg.Project.Exclude,
		},
		Backend: b,
		Out:     os.Stdout,
		Logger:  logger,
	}
}

func (s *IncrementalSync) Run(ctx context.Context, force bool) (*Result, error) {
	s.Logger = logging.OrNop(s.Logger)
	if s.Out == nil {
		s.Out = io.Discard
	}
	mode := "incremental"
	if force {
		mode = "full"
	}
	rr := report.NewRunReport(mode, s.Root)
	res := &Result{Report: rr}

	plan, err := s.detectChangesStage(ctx, rr, force)
	if err != nil {
		return res, err
	}
	res.Changes = plan.Changes
	if len(plan.Changes) == 0 && !plan.FullResync {
		fmt.Fprintln(s.Out, "✅ No changes detected.")
		return res, s.saveReport(rr)
	}

	store, err := s.initStoreStage()
	if err != nil {
		return res, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	x, err := s.reindexStage(ctx, rr, store, plan)
	if err != nil {
		return res, err
	}
	res.FullResync = plan.FullResync
	res.Index = x

	res.Impact = s.impactAnalysisStage(rr, x, plan.Changes)

	res.Outcomes, err = s.expansionStage(ctx, rr, store, x, res.Impact, plan.FullResync)
	if err != nil {
		return res, err
	}

	if err := s.reportStage(rr, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *IncrementalSync) detectChangesStage(ctx context.Context, rr *report.RunReport, force bool) (*updatePlan, error) {
	h := rr.BeginStage(report.StageDetectChanges)

	changes, err := ChangedFiles(ctx, s.Root, s.BaseRef, s.Crawl)
	if err != nil {
		if force && errors.Is(err, ErrNotRepository) {
			rr.EndStage(h, report.StatusSkipped, nil, []string{"not a git repository, full sync only"}, nil)
			fmt.Fprintln(s.Out, "🧭 Not a git repository. Running full sync from current tree (--force).")
			return &updatePlan{FullResync: true}, nil
		}
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}

	if force {
		fmt.Fprintln(s.Out, "🧭 Running full sync from current tree (--force).")
	} else if len(changes) > 0 {
		fmt.Fprintf(s.Out, "📝 Detected %d changed files.\n", len(changes))
	}
	rr.EndStage(h, report.StatusOK, report.Counters{report.CounterChanges: float64(len(changes))}, []string{"base " + s.BaseRef}, nil)

	return &updatePlan{Changes: changes, FullResync: force}, nil
}

// ErrNotRepository is returned by ChangedFiles outside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// ChangedFiles lists the files under root that differ from baseRef, with
// paths relative to root. Files outside root or rejected by the crawler
// filters are dropped.
func ChangedFiles(ctx context.Context, root, baseRef string, opts crawler.Options) ([]git.ChangedFile, error) {
	repoRoot, err := git.RepoRoot(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	raw, err := git.GetChangedFiles(ctx, repoRoot, baseRef)
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	c := crawler.NewCrawler(opts, nil)

	var out []git.ChangedFile
	for _, ch := range raw {
		rel, err := filepath.Rel(absRoot, filepath.Join(repoRoot, filepath.FromSlash(ch.Path)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if !c.Accepts(rel) || c.Excluded(rel) {
			continue
		}
		ch.Path = rel
		out = append(out, ch)
	}
	return out, nil
}

func (s *IncrementalSync) initStoreStage() (storage.Store, error) {
	store, err := storage.NewSQLiteStore(s.DBPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (s *IncrementalSync) reindexStage(ctx context.Context, rr *report.RunReport, store storage.IndexStore, plan *updatePlan) (*index.Index, error) {
	h := rr.BeginStage(report.StageReindex)
	indexer := index.NewIndexer(crawler.NewCrawler(s.Crawl, s.Logger), s.Jobs, s.Logger)

	var x *index.Index
	if !plan.FullResync {
		loaded, err := store.LoadIndex(ctx, s.Root)
		if err != nil {
			rr.EndStage(h, report.StatusError, nil, nil, err)
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		if len(loaded.Files) == 0 {
			fmt.Fprintln(s.Out, "🧭 Store is empty. Running full sync.")
			plan.FullResync = true
		} else {
			x = loaded
		}
	}

	if plan.FullResync {
		built, err := indexer.BuildIndex(ctx, s.Root)
		if err != nil {
			rr.EndStage(h, report.StatusError, nil, nil, err)
			return nil, fmt.Errorf("full index build failed: %w", err)
		}
		if err := store.SaveIndex(ctx, built); err != nil {
			rr.EndStage(h, report.StatusError, nil, nil, err)
			return nil, fmt.Errorf("failed to save index: %w", err)
		}
		st := built.Stats()
		fmt.Fprintf(s.Out, "📊 Index: full rebuild, %d files, %d regions.\n", st.Files, st.Regions)
		rr.EndStage(h, report.StatusOK, report.Counters{report.CounterFiles: float64(st.Files), report.CounterRegions: float64(st.Regions)}, []string{"full"}, nil)
		return built, nil
	}

	var toIndex []string
	removed, unchanged := 0, 0
	for _, ch := range plan.Changes {
		if ch.Deleted {
			if x.Remove(ch.Path) {
				removed++
			}
			if err := store.DeleteFile(ctx, ch.Path); err != nil {
				rr.EndStage(h, report.StatusError, nil, nil, err)
				return nil, fmt.Errorf("failed to delete %s: %w", ch.Path, err)
			}
			continue
		}
		abs := x.Abs(ch.Path)
		if content, err := os.ReadFile(abs); err == nil {
			stored, ok, err := store.FileHash(ctx, ch.Path)
			if err != nil {
				rr.EndStage(h, report.StatusError, nil, nil, err)
				return nil, err
			}
			if ok && stored == index.HashContent(content) {
				unchanged++
				continue
			}
		}
		toIndex = append(toIndex, abs)
	}

	if err := indexer.IndexFiles(ctx, x, toIndex); err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}
	if err := s.persist(ctx, store, x, toIndex); err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}

	fmt.Fprintf(s.Out, "📊 Index: %d files reindexed, %d removed, %d unchanged.\n", len(toIndex), removed, unchanged)
	rr.EndStage(h, report.StatusOK, report.Counters{
		report.CounterReindexed: float64(len(toIndex)),
		report.CounterRemoved:   float64(removed),
		report.CounterUnchanged: float64(unchanged),
	}, nil, nil)
	return x, nil
}

func (s *IncrementalSync) persist(ctx context.Context, store storage.IndexStore, x *index.Index, paths []string) error {
	for _, p := range paths {
		f, ok := x.File(x.Rel(p))
		if !ok {
			continue
		}
		if err := store.SaveFile(ctx, f); err != nil {
			return fmt.Errorf("failed to save %s: %w", f.Path, err)
		}
	}
	return nil
}

func (s *IncrementalSync) impactAnalysisStage(rr *report.RunReport, x *index.Index, changes []git.ChangedFile) *analysis.ImpactReport {
	h := rr.BeginStage(report.StageImpact)
	fmt.Fprintln(s.Out, "🔍 Analyzing impact...")

	impact, err := analysis.NewAnalyzer(x).AnalyzeImpact(changes)
	if err != nil {
		s.Logger.Warn("analysis failed", zap.Error(err))
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return &analysis.ImpactReport{}
	}

	for _, f := range impact.Tampered {
		rr.AddSignal(report.SignalTampered, report.StageImpact,
			fmt.Sprintf("%s:%d %s output edited by hand", f.Region.Path, f.Region.Call+1, f.Region.Name), float64(len(f.Lines)))
	}
	for _, ch := range changes {
		if f, ok := x.File(ch.Path); ok && f.Fatal != nil {
			rr.AddSignal(report.SignalFatal, report.StageImpact, f.Path+": "+f.Fatal.Err().Error(), 1)
		}
	}

	fmt.Fprintf(s.Out, "  -> %d regions stale\n", len(impact.Stale))
	fmt.Fprintf(s.Out, "  -> %d regions with hand-edited output\n", len(impact.Tampered))
	rr.EndStage(h, report.StatusOK, report.Counters{
		report.CounterStale:    float64(len(impact.Stale)),
		report.CounterTampered: float64(len(impact.Tampered)),
		report.CounterDeleted:  float64(len(impact.Deleted)),
	}, nil, nil)
	return impact
}

func (s *IncrementalSync) expansionStage(ctx context.Context, rr *report.RunReport, store storage.IndexStore, x *index.Index, impact *analysis.ImpactReport, full bool) ([]*generator.FileOutcome, error) {
	h := rr.BeginStage(report.StageExpand)
	if s.Backend == nil {
		rr.EndStage(h, report.StatusSkipped, nil, []string{"no backend configured"}, nil)
		return nil, nil
	}

	// Hand-edited output is never overwritten, even when the region is also stale.
	tampered := make(map[string]bool, len(impact.Tampered))
	for _, f := range impact.Tampered {
		tampered[f.Region.ID] = true
	}
	for _, f := range impact.Stale {
		if tampered[f.Region.ID] {
			rr.AddSignal(report.SignalStaleKept, report.StageExpand,
				fmt.Sprintf("%s:%d %s is stale but its output was edited by hand; not expanded", f.Region.Path, f.Region.Call+1, f.Region.Name), 1)
		}
	}

	opts := generator.Options{DryRun: s.DryRun, Jobs: s.Jobs}
	if full {
		opts.Select = func(r index.RegionRecord) bool { return !tampered[r.ID] }
	} else {
		ids := make([]string, 0, len(impact.Stale))
		for _, f := range impact.Stale {
			if !tampered[f.Region.ID] {
				ids = append(ids, f.Region.ID)
			}
		}
		if len(ids) == 0 {
			rr.EndStage(h, report.StatusSkipped, nil, []string{"no stale regions to expand"}, nil)
			return nil, nil
		}
		opts.Select = generator.ByID(ids...)
	}

	fmt.Fprintf(s.Out, "✍️  Expanding regions with %s backend...\n", s.Backend.Name())
	outcomes, err := generator.NewExpander(s.Backend, opts, s.Logger).ExpandIndex(ctx, x)
	if err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}

	// Written files have new content; keep the index and store in step.
	var written []string
	for _, o := range outcomes {
		if o.Written {
			written = append(written, x.Abs(o.Path))
		}
		for _, c := range o.Changes {
			if c.Action == generator.ActionFailed {
				rr.AddSignal(report.SignalExpansionFailed, report.StageExpand, fmt.Sprintf("%s:%d %s: %s", o.Path, c.Call+1, c.Name, c.Error), 1)
			}
		}
	}
	indexer := index.NewIndexer(crawler.NewCrawler(s.Crawl, s.Logger), s.Jobs, s.Logger)
	if err := indexer.IndexFiles(ctx, x, written); err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}
	if err := s.persist(ctx, store, x, written); err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return nil, err
	}

	sum := report.SummarizeExpansion(outcomes)
	rr.EndStage(h, report.StatusOK, report.Counters{
		report.CounterFiles:   float64(sum.Files),
		report.CounterWritten: float64(sum.Written),
		report.CounterChanged: float64(sum.Changed),
		report.CounterFailed:  float64(sum.Failed),
	}, nil, nil)
	return outcomes, nil
}

func (s *IncrementalSync) reportStage(rr *report.RunReport, res *Result) error {
	h := rr.BeginStage(report.StageReport)
	opts := report.Options{Color: s.Color}
	if err := report.RenderImpact(s.Out, res.Impact, report.FormatText, opts); err != nil {
		rr.EndStage(h, report.StatusError, nil, nil, err)
		return err
	}
	if res.Outcomes != nil {
		if err := report.RenderExpansion(s.Out, res.Outcomes, report.FormatText, opts); err != nil {
			rr.EndStage(h, report.StatusError, nil, nil, err)
			return err
		}
	}
	rr.EndStage(h, report.StatusOK, nil, nil, nil)
	return s.saveReport(rr)
}

func (s *IncrementalSync) saveReport(rr *report.RunReport) error {
	if s.ReportPath == "" {
		rr.Finalize()
		return nil
	}
	if err := rr.Save(s.ReportPath); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	fmt.Fprintf(s.Out, "🧾 Run report saved to %s\n", s.ReportPath)
	return nil
}
