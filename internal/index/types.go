package index

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"den/internal/annotation"
)

// RegionRecord is a region located in a file, with a stable identifier.
type RegionRecord struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Ordinal int    `json:"ordinal"`
	annotation.Region
}

// Fatal is the serializable form of an annotation.FatalError.
type Fatal struct {
	Kind    string              `json:"kind"` // missing_start or missing_end
	Region  annotation.Region   `json:"region"`
	Trigger annotation.LineMark `json:"trigger"`
}

const (
	FatalMissingStart = "missing_start"
	FatalMissingEnd   = "missing_end"
)

// NewFatal converts a parse error. It returns nil for errors that are not
// *annotation.FatalError.
func NewFatal(err error) *Fatal {
	var fe *annotation.FatalError
	if !errors.As(err, &fe) {
		return nil
	}
	kind := FatalMissingStart
	if errors.Is(fe.Err, annotation.ErrMissingEnd) {
		kind = FatalMissingEnd
	}
	return &Fatal{Kind: kind, Region: fe.Region, Trigger: fe.Trigger}
}

// Err rebuilds the annotation error.
func (f *Fatal) Err() error {
	if f == nil {
		return nil
	}
	sentinel := annotation.ErrMissingStart
	if f.Kind == FatalMissingEnd {
		sentinel = annotation.ErrMissingEnd
	}
	return &annotation.FatalError{Err: sentinel, Region: f.Region, Trigger: f.Trigger}
}

// FileResult is everything known about one scanned file.
type FileResult struct {
	Path        string               `json:"path"`
	ContentHash string               `json:"content_hash"`
	Regions     []RegionRecord       `json:"regions"`
	Warnings    []annotation.Warning `json:"warnings"`
	Fatal       *Fatal               `json:"fatal,omitempty"`
	Err         string               `json:"error,omitempty"` // read failures
}

// OK reports whether the file was read and parsed without a fatal error.
func (f *FileResult) OK() bool {
	return f.Fatal == nil && f.Err == ""
}

// HashContent returns the hex sha256 of a file's content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// BuildRegionID creates a deterministic region ID from its file, name and
// position among the file's regions.
func BuildRegionID(path, name string, ordinal int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "_"
	}
	fingerprint := strings.Join([]string{path, name, fmt.Sprint(ordinal)}, "|")
	sum := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%s:%s:%s", path, name, hex.EncodeToString(sum[:6]))
}

// Stats counts the contents of an index.
type Stats struct {
	Files    int `json:"files"`
	Regions  int `json:"regions"`
	Warnings int `json:"warnings"`
	Fatal    int `json:"fatal"`
	Errors   int `json:"errors"`
}

// Index holds the scan results of a tree, ordered by path.
type Index struct {
	Root  string        `json:"root"`
	Files []*FileResult `json:"files"`

	// Name -> region IDs, rebuilt after bulk changes.
	nameIndex map[string][]string
	byID      map[string]*RegionRecord
}

func NewIndex(root string) *Index {
	return &Index{
		Root:      root,
		Files:     []*FileResult{},
		nameIndex: make(map[string][]string),
		byID:      make(map[string]*RegionRecord),
	}
}

// Put inserts or replaces the result for f.Path.
func (x *Index) Put(f *FileResult) {
	i := sort.Search(len(x.Files), func(i int) bool { return x.Files[i].Path >= f.Path })
	if i < len(x.Files) && x.Files[i].Path == f.Path {
		x.Files[i] = f
	} else {
		x.Files = append(x.Files, nil)
		copy(x.Files[i+1:], x.Files[i:])
		x.Files[i] = f
	}
	x.RebuildIndices()
}

// Remove drops a file. It reports whether the file was present.
func (x *Index) Remove(path string) bool {
	i := sort.Search(len(x.Files), func(i int) bool { return x.Files[i].Path >= path })
	if i >= len(x.Files) || x.Files[i].Path != path {
		return false
	}
	x.Files = append(x.Files[:i], x.Files[i+1:]...)
	x.RebuildIndices()
	return true
}

func (x *Index) File(path string) (*FileResult, bool) {
	i := sort.Search(len(x.Files), func(i int) bool { return x.Files[i].Path >= path })
	if i < len(x.Files) && x.Files[i].Path == path {
		return x.Files[i], true
	}
	return nil, false
}

// RebuildIndices refreshes lookups that are not serialized.
func (x *Index) RebuildIndices() {
	sort.SliceStable(x.Files, func(i, j int) bool { return x.Files[i].Path < x.Files[j].Path })
	x.nameIndex = make(map[string][]string)
	x.byID = make(map[string]*RegionRecord)
	for _, f := range x.Files {
		for i := range f.Regions {
			r := &f.Regions[i]
			x.byID[r.ID] = r
			x.nameIndex[r.Name] = append(x.nameIndex[r.Name], r.ID)
		}
	}
}

// Regions returns every region in path then line order.
func (x *Index) Regions() []RegionRecord {
	var out []RegionRecord
	for _, f := range x.Files {
		out = append(out, f.Regions...)
	}
	return out
}

func (x *Index) Region(id string) (RegionRecord, bool) {
	r, ok := x.byID[id]
	if !ok {
		return RegionRecord{}, false
	}
	return *r, true
}

// FindByName returns every region invoking name.
func (x *Index) FindByName(name string) []RegionRecord {
	ids := x.nameIndex[name]
	out := make([]RegionRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *x.byID[id])
	}
	return out
}

// Names returns the distinct invocation names, sorted.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.nameIndex))
	for n := range x.nameIndex {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (x *Index) Stats() Stats {
	s := Stats{Files: len(x.Files)}
	for _, f := range x.Files {
		s.Regions += len(f.Regions)
		s.Warnings += len(f.Warnings)
		if f.Fatal != nil {
			s.Fatal++
		}
		if f.Err != "" {
			s.Errors++
		}
	}
	return s
}
