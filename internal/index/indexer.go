package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"den/internal/annotation"
	"den/internal/crawler"
	"den/internal/logging"
)

// Indexer orchestrates crawling and region parsing.
type Indexer struct {
	crawler *crawler.Crawler
	jobs    int
	logger  *zap.Logger
}

// NewIndexer creates a new indexer. jobs <= 0 uses GOMAXPROCS.
func NewIndexer(c *crawler.Crawler, jobs int, logger *zap.Logger) *Indexer {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Indexer{
		crawler: c,
		jobs:    jobs,
		logger:  logging.OrNop(logger),
	}
}

// ParseFile parses one file's content into a FileResult. path is recorded
// as given.
func ParseFile(path string, content []byte) *FileResult {
	res := &FileResult{
		Path:        path,
		ContentHash: HashContent(content),
		Regions:     []RegionRecord{},
		Warnings:    []annotation.Warning{},
	}

	out, err := annotation.Parse(string(content))
	if out != nil {
		for i, r := range out.Regions {
			res.Regions = append(res.Regions, RegionRecord{
				ID:      BuildRegionID(path, r.Name, i),
				Path:    path,
				Ordinal: i,
				Region:  r,
			})
		}
		res.Warnings = append(res.Warnings, out.Warnings...)
	}
	res.Fatal = NewFatal(err)
	return res
}

// BuildIndex scans the project root and parses every accepted file.
func (i *Indexer) BuildIndex(ctx context.Context, root string) (*Index, error) {
	files, err := i.crawler.ListFiles(root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	x := NewIndex(root)
	if err := i.IndexFiles(ctx, x, files); err != nil {
		return nil, err
	}
	return x, nil
}

// IndexFiles parses paths in parallel and stores the results in x, keyed by
// their path relative to x.Root. Files that cannot be read are recorded with
// Err set rather than failing the batch.
func (i *Indexer) IndexFiles(ctx context.Context, x *Index, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	// Each goroutine owns its slot.
	results := make([]*FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(i.jobs, len(paths)))

	for n, p := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			rel := x.Rel(p)
			content, err := os.ReadFile(p)
			if err != nil {
				i.logger.Warn("failed to read file", zap.String("path", rel), zap.Error(err))
				results[n] = &FileResult{Path: rel, Regions: []RegionRecord{}, Warnings: []annotation.Warning{}, Err: err.Error()}
				return nil
			}

			res := ParseFile(rel, content)
			if res.Fatal != nil {
				i.logger.Debug("fatal region error", zap.String("path", rel), zap.String("kind", res.Fatal.Kind))
			}
			results[n] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		x.Files = append(x.Files, res)
	}
	x.dedupe()
	x.RebuildIndices()

	i.logger.Debug("indexed files", zap.Int("count", len(paths)))
	return nil
}

// Rel maps a filesystem path to the slash-separated key used in the index.
func (x *Index) Rel(p string) string {
	absRoot, err1 := filepath.Abs(x.Root)
	absPath, err2 := filepath.Abs(p)
	if err1 == nil && err2 == nil {
		if rel, err := filepath.Rel(absRoot, absPath); err == nil && !startsWithDotDot(rel) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// Abs maps an index key back to a filesystem path.
func (x *Index) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(x.Root, filepath.FromSlash(rel))
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// dedupe keeps the last result for each path.
func (x *Index) dedupe() {
	last := make(map[string]int, len(x.Files))
	for n, f := range x.Files {
		last[f.Path] = n
	}
	out := x.Files[:0]
	for n, f := range x.Files {
		if last[f.Path] == n {
			out = append(out, f)
		}
	}
	x.Files = out
}

// SaveIndex persists the index to a JSON file.
func SaveIndex(x *Index, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(x); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// LoadIndex loads an index from a JSON file.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	x := NewIndex("")
	if err := json.NewDecoder(f).Decode(x); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	// Important: Rebuild internal indices that aren't serialized
	x.RebuildIndices()
	return x, nil
}
