package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"den/internal/backend"
	"den/internal/index"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

var fixture = lines(
	"fn keep() {}",
	"    // @den::debug!",
	"    // derive all",
	"    struct A;",
	"    // ```@den```",
	"    old line",
	"    // ```@den```end:debug!",
	"// @den::fresh!",
	"// note",
	"",
	"// @den::open!",
	"// ```@den```",
)

var expanded = lines(
	"fn keep() {}",
	"    // @den::debug!",
	"    // derive all",
	"    struct A;",
	"    // ```@den```",
	"    gen debug",
	"    // ```@den```end:debug!",
	"// @den::fresh!",
	"// note",
	"// ```@den```",
	"gen fresh",
	"// ```@den```end:fresh!",
	"",
	"// @den::open!",
	"// ```@den```",
	"gen open",
	"// ```@den```end:open!",
)

// recorder is a backend that answers "gen <name>" and remembers what it saw.
type recorder struct {
	mu   sync.Mutex
	seen map[string]backend.Invocation
	fail map[string]error
}

func newRecorder() *recorder {
	return &recorder{seen: map[string]backend.Invocation{}, fail: map[string]error{}}
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Expand(_ context.Context, inv backend.Invocation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[inv.Name] = inv
	if err := r.fail[inv.Name]; err != nil {
		return "", err
	}
	return "gen " + inv.Name + "\n", nil
}

func actions(o *FileOutcome) map[string]Action {
	m := make(map[string]Action, len(o.Changes))
	for _, c := range o.Changes {
		m[c.Name] = c.Action
	}
	return m
}

func TestExpander_ExpandContent(t *testing.T) {
	rec := newRecorder()
	e := NewExpander(rec, Options{}, nil)

	outcome, err := e.ExpandContent(context.Background(), "lib.rs", []byte(fixture))
	require.NoError(t, err)
	require.True(t, outcome.Changed())
	assert.Equal(t, expanded, string(outcome.Content))

	assert.Equal(t, map[string]Action{
		"debug": ActionReplaced,
		"fresh": ActionInserted,
		"open":  ActionClosed,
	}, actions(outcome))

	// Changes are reported in line order.
	require.Len(t, outcome.Changes, 3)
	assert.Equal(t, "debug", outcome.Changes[0].Name)
	assert.Equal(t, "open", outcome.Changes[2].Name)

	t.Run("invocation", func(t *testing.T) {
		inv := rec.seen["debug"]
		assert.Equal(t, []string{"derive all"}, inv.Attributes)
		assert.Equal(t, "    struct A;", inv.Input)
		assert.Equal(t, "    ", inv.Indent)
		assert.Equal(t, 1, inv.Line)
		assert.Equal(t, "lib.rs", inv.Path)

		assert.Equal(t, []string{"note"}, rec.seen["fresh"].Attributes)
		assert.Empty(t, rec.seen["fresh"].Input)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		again, err := e.ExpandContent(context.Background(), "lib.rs", outcome.Content)
		require.NoError(t, err)
		assert.False(t, again.Changed())
		for _, c := range again.Changes {
			assert.Equal(t, ActionUnchanged, c.Action, c.Name)
		}
	})
}

func TestExpander_BackendFailureLeavesRegion(t *testing.T) {
	rec := newRecorder()
	rec.fail["fresh"] = errors.New("backend down")
	e := NewExpander(rec, Options{}, nil)

	outcome, err := e.ExpandContent(context.Background(), "lib.rs", []byte(fixture))
	require.NoError(t, err)
	require.True(t, outcome.Changed())

	acts := actions(outcome)
	assert.Equal(t, ActionFailed, acts["fresh"])
	assert.Equal(t, ActionReplaced, acts["debug"])

	out := string(outcome.Content)
	assert.NotContains(t, out, "gen fresh")
	assert.NotContains(t, out, "```@den```end:fresh!")
	assert.Contains(t, out, "gen open")
}

func TestExpander_RejectsMarkersInOutput(t *testing.T) {
	b := backend.Func(func(context.Context, backend.Invocation) (string, error) {
		return "x\n// @den::sneaky!", nil
	})
	outcome, err := NewExpander(b, Options{}, nil).ExpandContent(context.Background(), "lib.rs", []byte(fixture))
	require.NoError(t, err)
	assert.False(t, outcome.Changed())
	for _, c := range outcome.Changes {
		assert.Equal(t, ActionFailed, c.Action)
		assert.Contains(t, c.Error, ErrMarkerInOutput.Error())
	}
}

func TestExpander_SelectByName(t *testing.T) {
	rec := newRecorder()
	e := NewExpander(rec, Options{Select: ByName("open")}, nil)

	outcome, err := e.ExpandContent(context.Background(), "lib.rs", []byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, map[string]Action{"open": ActionClosed}, actions(outcome))
	assert.Len(t, rec.seen, 1)
}

func TestExpander_SkipsFatalContent(t *testing.T) {
	rec := newRecorder()
	outcome, err := NewExpander(rec, Options{}, nil).ExpandContent(context.Background(), "bad.rs", []byte(lines("// @den::x!", "struct A;")))
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Skipped)
	assert.False(t, outcome.Changed())
	assert.Empty(t, rec.seen)
}

func TestExpander_EndWithoutStart(t *testing.T) {
	src := lines(
		"  // @den::m!",
		"  // keep",
		"  // ```@den```end:m!",
		"fn after() {}",
	)
	outcome, err := NewExpander(newRecorder(), Options{}, nil).ExpandContent(context.Background(), "m.rs", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]Action{"m": ActionOpened}, actions(outcome))
	assert.Equal(t, lines(
		"  // @den::m!",
		"  // keep",
		"  // ```@den```",
		"  gen m",
		"  // ```@den```end:m!",
		"fn after() {}",
	), string(outcome.Content))

	reparsed := index.ParseFile("m.rs", outcome.Content)
	assert.Nil(t, reparsed.Fatal)
	assert.Empty(t, reparsed.Warnings)
	require.Len(t, reparsed.Regions, 1)
	assert.True(t, reparsed.Regions[0].Start.Valid)

	again, err := NewExpander(newRecorder(), Options{}, nil).ExpandContent(context.Background(), "m.rs", outcome.Content)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestExpander_PreservesCRLF(t *testing.T) {
	src := "// @den::a!\r\n// ```@den```\r\nold\r\n// ```@den```end:a!\r\n"
	outcome, err := NewExpander(newRecorder(), Options{}, nil).ExpandContent(context.Background(), "a.rs", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "// @den::a!\r\n// ```@den```\r\ngen a\r\n// ```@den```end:a!\r\n", string(outcome.Content))
}

func TestExpander_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExpander(newRecorder(), Options{}, nil).ExpandContent(ctx, "lib.rs", []byte(fixture))
	assert.ErrorIs(t, err, context.Canceled)
}

func indexDir(t *testing.T, root string, files map[string]string) *index.Index {
	t.Helper()
	x := index.NewIndex(root)
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		x.Put(index.ParseFile(rel, []byte(content)))
	}
	return x
}

func TestExpander_ExpandIndex(t *testing.T) {
	root := t.TempDir()
	x := indexDir(t, root, map[string]string{
		"lib.rs":   fixture,
		"bad.rs":   lines("// @den::x!", "struct A;"),
		"plain.rs": "fn main() {}\n",
	})

	outcomes, err := NewExpander(newRecorder(), Options{Jobs: 2}, nil).ExpandIndex(context.Background(), x)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byPath := map[string]*FileOutcome{}
	for _, o := range outcomes {
		byPath[o.Path] = o
	}
	assert.NotEmpty(t, byPath["bad.rs"].Skipped)
	assert.True(t, byPath["lib.rs"].Written)

	got, err := os.ReadFile(filepath.Join(root, "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, expanded, string(got))

	info, err := os.Stat(filepath.Join(root, "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExpander_ExpandIndex_DryRunAndStaleContent(t *testing.T) {
	root := t.TempDir()
	x := indexDir(t, root, map[string]string{"lib.rs": fixture, "other.rs": fixture})

	// other.rs is edited after indexing.
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.rs"), []byte(fixture+"\n"), 0o600))

	outcomes, err := NewExpander(newRecorder(), Options{DryRun: true}, nil).ExpandIndex(context.Background(), x)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	for _, o := range outcomes {
		assert.False(t, o.Written, o.Path)
		switch o.Path {
		case "lib.rs":
			assert.True(t, o.Changed())
		case "other.rs":
			assert.Equal(t, "file changed since it was indexed", o.Skipped)
		}
	}

	got, err := os.ReadFile(filepath.Join(root, "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, fixture, string(got))
}
