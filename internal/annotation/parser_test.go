package annotation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestParse_Scenarios(t *testing.T) {
	t.Run("call only", func(t *testing.T) {
		out, err := Parse(text("// @den::macro!"))
		require.NoError(t, err)
		assert.Equal(t, []Region{region("macro", 0, none, none, none, none, none)}, out.Regions)
		assert.Empty(t, out.Warnings)
	})

	t.Run("call and start", func(t *testing.T) {
		out, err := Parse(text("// @den::macro!", "// ```@den```"))
		require.NoError(t, err)
		assert.Equal(t, []Region{region("macro", 0, none, none, At(1), none, none)}, out.Regions)
		assert.Empty(t, out.Warnings)
	})

	t.Run("call start output end", func(t *testing.T) {
		out, err := Parse(text(
			"// @den::macro!",
			"// ```@den```",
			"struct Output;",
			"// ```@den```end:macro!",
		))
		require.NoError(t, err)
		assert.Equal(t, []Region{region("macro", 0, none, none, At(1), At(2), At(3))}, out.Regions)
		assert.Empty(t, out.Warnings)
	})

	t.Run("items without start at end of input", func(t *testing.T) {
		out, err := Parse(text("// @den::macro!", "fn output1() {}"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingStart))

		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.Equal(t, region("macro", 0, none, At(1), none, none, none), fatal.Region)
		assert.False(t, fatal.Trigger.Valid)

		require.NotNil(t, out)
		assert.Empty(t, out.Regions, "the offending region is excluded")
	})

	t.Run("items without start before next call", func(t *testing.T) {
		out, err := Parse(text(
			"// @den::first!",
			"fn input() {}",
			"// @den::second!",
			"// ```@den```",
		))
		var fatal *FatalError
		require.True(t, errors.As(err, &fatal))
		assert.ErrorIs(t, err, ErrMissingStart)
		assert.Equal(t, "first", fatal.Region.Name)
		assert.Equal(t, At(2), fatal.Trigger)
		assert.Empty(t, out.Regions)
	})

	t.Run("end without call", func(t *testing.T) {
		out, err := Parse(text("// ```@den```end:macro!"))
		require.NoError(t, err)
		assert.Empty(t, out.Regions)
		assert.Equal(t, []Warning{{Kind: UnexpectedEnd, Line: 0}}, out.Warnings)
	})

	t.Run("end name mismatch", func(t *testing.T) {
		out, err := Parse(text(
			"// @den::macro!",
			"// ```@den```",
			"struct Output;",
			"// ```@den```end:other!",
		))
		require.NoError(t, err)
		require.Len(t, out.Regions, 1)
		assert.Equal(t, At(3), out.Regions[0].End, "mismatched end still closes the region")
		assert.Equal(t, []Warning{{Kind: NameMismatch, Line: 3}}, out.Warnings)
	})
}

func TestParse_FullRegion(t *testing.T) {
	out, err := Parse(text(
		"    // @den::derive_debug!",
		"    // #[inline]",
		"    // second attribute",
		"    struct Input {",
		"        a: u32,",
		"    }",
		"    // ```@den```",
		"    impl Debug for Input {}",
		"    // comment inside output",
		"    fn helper() {}",
		"    // ```@den```end:derive_debug!",
		"    trailing_code();",
	))
	require.NoError(t, err)
	require.Len(t, out.Regions, 1)
	assert.Equal(t, region("derive_debug", 0, At(1), At(3), At(6), At(7), At(10)), out.Regions[0])
	assert.Empty(t, out.Warnings)
}

func TestParse_Warnings(t *testing.T) {
	out, err := Parse(text(
		"// ```@den```",
		"// @den::broken",
		"// @den::a!",
		"// ```@den```",
		"// ```@den```",
		"x();",
		"// ```@den```end:a",
		"// ```@den```end:a!",
		"// ```@den```end:a!",
	))
	require.NoError(t, err)
	assert.Equal(t, []Warning{
		{Kind: UnexpectedStart, Line: 0},
		{Kind: CallNoBang, Line: 1},
		{Kind: UnexpectedStart, Line: 4},
		{Kind: EndNoBang, Line: 6},
		{Kind: UnexpectedEnd, Line: 8},
	}, out.Warnings)
	require.Len(t, out.Regions, 1)
	assert.Equal(t, region("a", 2, none, none, At(3), At(5), At(7)), out.Regions[0])
}

func TestParse_StartRejectedAfterOutput(t *testing.T) {
	out, err := Parse(text(
		"// @den::a!",
		"// ```@den```",
		"out();",
		"// ```@den```end:a!",
		"// ```@den```",
	))
	require.NoError(t, err)
	assert.Equal(t, []Warning{{Kind: UnexpectedStart, Line: 4}}, out.Warnings)
}

func TestParse_MultipleRegions(t *testing.T) {
	out, err := Parse(text(
		"// @den::one!",
		"// ```@den```",
		"// ```@den```end:one!",
		"",
		"fn between() {}",
		"// @den::two!",
		"// attr",
		"in();",
		"// ```@den```",
		"// ```@den```end:two!",
	))
	require.NoError(t, err)
	assert.Equal(t, []Region{
		region("one", 0, none, none, At(1), none, At(2)),
		region("two", 5, At(6), At(7), At(8), none, At(9)),
	}, out.Regions)
	assert.Empty(t, out.Warnings)
}

func TestParse_NestedCallsReplaceOpenRegion(t *testing.T) {
	out, err := Parse(text(
		"// @den::outer!",
		"// @den::inner!",
		"// ```@den```",
		"// ```@den```end:inner!",
	))
	require.NoError(t, err)
	assert.Equal(t, []Region{
		region("outer", 0, none, none, none, none, none),
		region("inner", 1, none, none, At(2), none, At(3)),
	}, out.Regions)
}

func TestParse_FatalKeepsEarlierRegions(t *testing.T) {
	out, err := Parse(text(
		"// @den::ok!",
		"// ```@den```",
		"// ```@den```end:ok!",
		"// @den::bad!",
		"// ```@den```",
		"generated();",
		"// @den::never!",
		"// ```@den```end:zzz",
	))
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.ErrorIs(t, err, ErrMissingEnd)
	assert.Equal(t, region("bad", 3, none, none, At(4), At(5), none), fatal.Region)
	assert.Equal(t, At(6), fatal.Trigger)
	assert.Contains(t, err.Error(), "detected at line 6")

	require.NotNil(t, out)
	assert.Equal(t, []Region{region("ok", 0, none, none, At(1), none, At(2))}, out.Regions)
	assert.Empty(t, out.Warnings, "lines after the fatal error are not processed")
}

func TestParse_LineSplitting(t *testing.T) {
	out, err := Parse("// @den::crlf!\r\n// ```@den```\r\nx();\r\n// ```@den```end:crlf!")
	require.NoError(t, err)
	assert.Equal(t, []Region{region("crlf", 0, none, none, At(1), At(2), At(3))}, out.Regions)

	out, err = Parse("")
	require.NoError(t, err)
	assert.Empty(t, out.Regions)
	assert.Empty(t, out.Warnings)

	assert.Equal(t, []string{"a", "", "b"}, Lines("a\r\n\nb\n"))
	assert.Nil(t, Lines(""))
}

func TestParse_WellFormedInvariants(t *testing.T) {
	inputs := []string{
		text("// @den::a!", "// ```@den```", "// ```@den```end:a!"),
		text("// @den::a!", "i();", "// ```@den```", "o();", "// ```@den```end:a!", "after();"),
		text("// @den::a!", "// @den::b!", "// ```@den```", "// @den::c!"),
	}
	for _, in := range inputs {
		out, err := Parse(in)
		require.NoError(t, err)
		for _, r := range out.Regions {
			if r.Items.Valid {
				assert.True(t, r.Start.Valid)
			}
			if r.Output.Valid {
				assert.True(t, r.End.Valid)
			}
		}
	}
}

func TestEngine_HaltsAfterFatal(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.HandleLine(0, Tag{Kind: KindCall, Name: "a"}))
	require.NoError(t, e.HandleLine(1, Tag{Kind: KindItem}))

	err := e.HandleLine(2, Tag{Kind: KindCall, Name: "b"})
	require.ErrorIs(t, err, ErrMissingStart)
	assert.Same(t, err, e.HandleLine(3, Tag{Kind: KindStart}))

	out, finishErr := e.Finish()
	assert.Same(t, err, finishErr)
	assert.Empty(t, out.Regions)
}

func TestWarningKind_Text(t *testing.T) {
	for k := UnexpectedStart; k <= NameMismatch; k++ {
		data, err := k.MarshalText()
		require.NoError(t, err)

		var back WarningKind
		require.NoError(t, back.UnmarshalText(data))
		assert.Equal(t, k, back)
		assert.NotEmpty(t, k.Message())
	}

	var bad WarningKind
	assert.Error(t, bad.UnmarshalText([]byte("nope")))
}
