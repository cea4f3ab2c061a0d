package analysis

import (
	"testing"

	"den/internal/git"
	"den/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = "fn a() {}\n" + // 0
	"// @den::derive!\n" + // 1
	"// attr\n" + // 2
	"struct A;\n" + // 3
	"// ```@den```\n" + // 4
	"impl X for A {}\n" + // 5
	"// ```@den```end:derive!\n" + // 6
	"// @den::lone!\n" // 7

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	x := index.NewIndex(".")
	f := index.ParseFile("lib.rs", []byte(source))
	require.True(t, f.OK())
	require.Len(t, f.Regions, 2)
	x.Put(f)
	return NewAnalyzer(x)
}

func names(fs []Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Region.Name)
	}
	return out
}

func TestAnalyzeImpact(t *testing.T) {
	tests := []struct {
		name     string
		change   git.ChangedFile
		stale    []string
		tampered []string
	}{
		{
			name:   "input line changed",
			change: git.ChangedFile{Path: "lib.rs", ChangedLines: []int{4}},
			stale:  []string{"derive"},
		},
		{
			name:   "attribute line changed",
			change: git.ChangedFile{Path: "lib.rs", ChangedLines: []int{3}},
			stale:  []string{"derive"},
		},
		{
			name:     "output line edited",
			change:   git.ChangedFile{Path: "lib.rs", ChangedLines: []int{6}},
			tampered: []string{"derive"},
		},
		{
			name:   "line outside every region",
			change: git.ChangedFile{Path: "lib.rs", ChangedLines: []int{1}},
		},
		{
			name:   "call without markers",
			change: git.ChangedFile{Path: "lib.rs", ChangedLines: []int{8}},
			stale:  []string{"lone"},
		},
		{
			name:     "output line removed",
			change:   git.ChangedFile{Path: "lib.rs", RemovedAfter: []int{5}},
			tampered: []string{"derive"},
		},
		{
			name:   "input line removed",
			change: git.ChangedFile{Path: "lib.rs", RemovedAfter: []int{3}},
			stale:  []string{"derive"},
		},
		{
			name:   "removal before call",
			change: git.ChangedFile{Path: "lib.rs", RemovedAfter: []int{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newAnalyzer(t).AnalyzeImpact([]git.ChangedFile{tt.change})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.stale, names(report.Stale))
			assert.ElementsMatch(t, tt.tampered, names(report.Tampered))
		})
	}
}

func TestAnalyzeImpact_Lines(t *testing.T) {
	report, err := newAnalyzer(t).AnalyzeImpact([]git.ChangedFile{
		{Path: "lib.rs", ChangedLines: []int{2, 4, 6}},
	})
	require.NoError(t, err)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, []int{1, 3}, report.Stale[0].Lines)
	require.Len(t, report.Tampered, 1)
	assert.Equal(t, []int{5}, report.Tampered[0].Lines)
}

func TestAnalyzeImpact_DeletedAndUnindexed(t *testing.T) {
	report, err := newAnalyzer(t).AnalyzeImpact([]git.ChangedFile{
		{Path: "lib.rs", Deleted: true},
		{Path: "other.rs", ChangedLines: []int{1}},
		{Path: "gone.rs", Deleted: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib.rs"}, report.Deleted)
	assert.Equal(t, []string{"other.rs"}, report.Unindexed)
	assert.Empty(t, report.Stale)
}
