package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"den/internal/annotation"
	"den/internal/backend"
	"den/internal/index"
	"den/internal/logging"
)

// RegionChange records what happened to one region.
type RegionChange struct {
	RegionID string `json:"region_id"`
	Name     string `json:"name"`
	Call     int    `json:"call"`
	Action   Action `json:"action"`
	Lines    int    `json:"lines"` // output lines written
	Error    string `json:"error,omitempty"`
}

// FileOutcome is the result of expanding one file.
type FileOutcome struct {
	Path    string         `json:"path"`
	Written bool           `json:"written"`
	Skipped string         `json:"skipped,omitempty"`
	Changes []RegionChange `json:"changes"`

	// Content is the rewritten file; nil when nothing changed.
	Content []byte `json:"-"`
}

func (o *FileOutcome) Changed() bool {
	return o.Content != nil
}

// Options controls an expansion run.
type Options struct {
	DryRun bool
	Jobs   int
	// Select limits expansion to matching regions; nil selects all.
	Select func(r index.RegionRecord) bool
}

// Expander splices backend output into annotated files.
type Expander struct {
	backend backend.Backend
	opts    Options
	logger  *zap.Logger
}

func NewExpander(b backend.Backend, opts Options, logger *zap.Logger) *Expander {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	return &Expander{backend: b, opts: opts, logger: logging.OrNop(logger)}
}

// ByName selects regions invoking one of names.
func ByName(names ...string) func(index.RegionRecord) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(r index.RegionRecord) bool { return set[r.Name] }
}

// ByID selects regions by ID.
func ByID(ids ...string) func(index.RegionRecord) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(r index.RegionRecord) bool { return set[r.ID] }
}

// ExpandIndex expands every selected region of x, one goroutine per file up
// to the job limit. Files are re-read from disk and skipped when their
// content no longer matches the index.
func (e *Expander) ExpandIndex(ctx context.Context, x *index.Index) ([]*FileOutcome, error) {
	var files []*index.FileResult
	for _, f := range x.Files {
		if len(f.Regions) > 0 || f.Fatal != nil {
			files = append(files, f)
		}
	}

	outcomes := make([]*FileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(e.opts.Jobs, len(files))))

	for n, f := range files {
		g.Go(func() error {
			outcome, err := e.expandIndexed(gctx, x, f)
			if err != nil {
				return err
			}
			outcomes[n] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := outcomes[:0]
	for _, o := range outcomes {
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func (e *Expander) expandIndexed(ctx context.Context, x *index.Index, f *index.FileResult) (*FileOutcome, error) {
	if f.Fatal != nil {
		e.logger.Warn("skipping file with fatal region error", zap.String("path", f.Path), zap.String("kind", f.Fatal.Kind))
		return &FileOutcome{Path: f.Path, Skipped: f.Fatal.Err().Error(), Changes: []RegionChange{}}, nil
	}
	if !e.anySelected(f.Regions) {
		return nil, nil
	}

	abs := x.Abs(f.Path)
	content, err := os.ReadFile(abs)
	if err != nil {
		return &FileOutcome{Path: f.Path, Skipped: err.Error(), Changes: []RegionChange{}}, nil
	}
	if f.ContentHash != "" && index.HashContent(content) != f.ContentHash {
		return &FileOutcome{Path: f.Path, Skipped: "file changed since it was indexed", Changes: []RegionChange{}}, nil
	}

	outcome, err := e.ExpandContent(ctx, f.Path, content)
	if err != nil {
		return nil, err
	}
	if outcome.Changed() && !e.opts.DryRun {
		if err := writeFile(abs, outcome.Content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		outcome.Written = true
		e.logger.Info("expanded file", zap.String("path", f.Path), zap.Int("regions", len(outcome.Changes)))
	}
	return outcome, nil
}

func (e *Expander) anySelected(regions []index.RegionRecord) bool {
	if e.opts.Select == nil {
		return len(regions) > 0
	}
	for _, r := range regions {
		if e.opts.Select(r) {
			return true
		}
	}
	return false
}

// ExpandContent expands the selected regions of one file's content without
// touching the filesystem. A backend failure is recorded on its region and
// leaves that region as it was; only context cancellation aborts.
func (e *Expander) ExpandContent(ctx context.Context, path string, content []byte) (*FileOutcome, error) {
	outcome := &FileOutcome{Path: path, Changes: []RegionChange{}}

	parsed := index.ParseFile(path, content)
	if parsed.Fatal != nil {
		outcome.Skipped = parsed.Fatal.Err().Error()
		return outcome, nil
	}

	text := string(content)
	lines := annotation.Lines(text)

	regions := make([]index.RegionRecord, 0, len(parsed.Regions))
	for _, r := range parsed.Regions {
		if e.opts.Select == nil || e.opts.Select(r) {
			regions = append(regions, r)
		}
	}
	// Bottom-up so earlier line indices stay valid.
	sort.Slice(regions, func(i, j int) bool { return regions[i].Call > regions[j].Call })

	changed := false
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		change := RegionChange{RegionID: r.ID, Name: r.Name, Call: r.Call}
		output, err := e.generate(ctx, path, lines, &r.Region)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("expansion failed", zap.String("path", path), zap.String("region", r.Name), zap.Int("line", r.Call), zap.Error(err))
			change.Action = ActionFailed
			change.Error = err.Error()
			outcome.Changes = append(outcome.Changes, change)
			continue
		}

		var action Action
		lines, action = Splice(lines, &r.Region, output)
		change.Action = action
		change.Lines = len(output)
		if action != ActionUnchanged {
			changed = true
		}
		outcome.Changes = append(outcome.Changes, change)
	}

	// Report in line order.
	sort.SliceStable(outcome.Changes, func(i, j int) bool { return outcome.Changes[i].Call < outcome.Changes[j].Call })

	if !changed {
		return outcome, nil
	}

	rendered := joinLines(lines, text)
	// The rewritten file must parse to the same regions with no new warnings.
	check := index.ParseFile(path, rendered)
	if check.Fatal != nil || len(check.Regions) != len(parsed.Regions) || len(check.Warnings) > len(parsed.Warnings) {
		return nil, fmt.Errorf("expansion of %s produced an inconsistent file", path)
	}
	outcome.Content = rendered
	return outcome, nil
}

func (e *Expander) generate(ctx context.Context, path string, lines []string, r *annotation.Region) ([]string, error) {
	indent := Indentation(lines[r.Call])
	inv := backend.Invocation{
		Name:       r.Name,
		Attributes: AttributeText(lines, r),
		Input:      InputText(lines, r),
		Path:       path,
		Line:       r.Call,
		Indent:     indent,
	}
	code, err := e.backend.Expand(ctx, inv)
	if err != nil {
		return nil, err
	}
	output, err := FormatOutput(code, indent)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// joinLines renders lines with the line ending and final newline of the
// original text.
func joinLines(lines []string, original string) []byte {
	sep := "\n"
	if strings.Contains(original, "\r\n") {
		sep = "\r\n"
	}
	out := strings.Join(lines, sep)
	if strings.HasSuffix(original, "\n") {
		out += sep
	}
	return []byte(out)
}

func writeFile(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	tmp := path + ".den.tmp"
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
