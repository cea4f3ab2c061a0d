package crawler

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"den/internal/logging"
)

// Options selects which files a Crawler yields.
type Options struct {
	Extensions []string // e.g. ".rs"; empty means every file
	Ignored    []string // directory names skipped at any depth
	Excludes   []string // path.Match globs against slash paths relative to root
}

// Crawler scans a directory for source files.
type Crawler struct {
	extensions map[string]bool
	ignored    []string
	excludes   []string
	logger     *zap.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(opts Options, logger *zap.Logger) *Crawler {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Crawler{
		extensions: exts,
		ignored:    opts.Ignored,
		excludes:   opts.Excludes,
		logger:     logging.OrNop(logger),
	}
}

// Accepts reports whether a file path passes the extension filter.
func (c *Crawler) Accepts(p string) bool {
	if len(c.extensions) == 0 {
		return true
	}
	return c.extensions[filepath.Ext(p)]
}

// Excluded reports whether rel, a slash-separated path relative to the
// scan root, matches an exclude glob.
func (c *Crawler) Excluded(rel string) bool {
	for _, pattern := range c.excludes {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ScanProject walks root and calls onFile for every accepted file, in
// lexical order. Returning an error from onFile stops the walk.
func (c *Crawler) ScanProject(root string, onFile func(path string) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// Log and continue instead of failing the whole scan
			c.logger.Warn("walk failed", zap.String("path", p), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)

		// Skip ignored directories
		if d.IsDir() {
			if p == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if c.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !c.Accepts(p) || c.Excluded(rel) {
			return nil
		}
		return onFile(p)
	})
}

// ListFiles returns every accepted file under root.
func (c *Crawler) ListFiles(root string) ([]string, error) {
	var files []string
	err := c.ScanProject(root, func(p string) error {
		files = append(files, p)
		return nil
	})
	return files, err
}
