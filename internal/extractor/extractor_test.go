package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"den/internal/annotation"
)

func byName(units []*CodeUnit) map[string]*CodeUnit {
	m := make(map[string]*CodeUnit, len(units))
	for _, u := range units {
		m[u.Name] = u
	}
	return m
}

func find(units []*CodeUnit, name, unitType string) *CodeUnit {
	for _, u := range units {
		if u.Name == name && u.UnitType == unitType {
			return u
		}
	}
	return nil
}

func TestExtractor_Go(t *testing.T) {
	testFile := filepath.Join("testdata", "sample.go")

	ext, err := NewExtractor("go")
	require.NoError(t, err)

	units, err := ext.ExtractFromFile(testFile)
	require.NoError(t, err)
	unitsByName := byName(units)

	t.Run("Overall Count", func(t *testing.T) {
		// Base, User, Handler, MyFunc, MyFunction, MyMethod, Version, StatusOK, StatusError, GlobalVar
		assert.Len(t, units, 10)
	})

	t.Run("Package Name", func(t *testing.T) {
		for _, unit := range units {
			assert.Equal(t, "sample", unit.Package)
			assert.Equal(t, "go", unit.Language)
		}
	})

	t.Run("Constants", func(t *testing.T) {
		unit, ok := unitsByName["Version"]
		require.True(t, ok)
		assert.Equal(t, "constant", unit.UnitType)
		assert.Equal(t, "Version is the application version.", unit.Description)
		assert.Equal(t, `Version = "1.0.0"`, unit.Signature)

		unit, ok = unitsByName["StatusOK"]
		require.True(t, ok)
		assert.Equal(t, "StatusOK indicates success.", unit.Description)
	})

	t.Run("Variables", func(t *testing.T) {
		unit, ok := unitsByName["GlobalVar"]
		require.True(t, ok)
		assert.Equal(t, "variable", unit.UnitType)
		assert.Equal(t, "GlobalVar is a global variable.", unit.Description)
	})

	t.Run("Types", func(t *testing.T) {
		assert.Equal(t, "struct", unitsByName["Base"].UnitType)
		assert.Equal(t, "type Base struct", unitsByName["Base"].Signature)
		assert.Equal(t, "Base is a base struct.", unitsByName["Base"].Description)
		assert.Equal(t, "struct", unitsByName["User"].UnitType)
		assert.Equal(t, "interface", unitsByName["Handler"].UnitType)
	})

	t.Run("Functions", func(t *testing.T) {
		unit, ok := unitsByName["MyFunc"]
		require.True(t, ok)
		assert.Equal(t, "function", unit.UnitType)
		assert.Equal(t, "func MyFunc(a int, b string) bool", unit.Signature)
		assert.Equal(t, "MyFunc is a function.", unit.Description)
		assert.Less(t, unit.StartLine, unit.EndLine)
	})

	t.Run("Methods", func(t *testing.T) {
		unit, ok := unitsByName["MyMethod"]
		require.True(t, ok)
		assert.Equal(t, "method", unit.UnitType)
		assert.Contains(t, unit.Receiver, "*User")
	})

	t.Run("Stable IDs", func(t *testing.T) {
		again, err := ext.ExtractFromFile(testFile)
		require.NoError(t, err)
		for i := range units {
			assert.Equal(t, units[i].ID, again[i].ID)
		}
		assert.NotEqual(t, unitsByName["MyFunc"].ID, unitsByName["MyFunction"].ID)
	})
}

func TestExtractor_RustRegionOutput(t *testing.T) {
	testFile := filepath.Join("testdata", "sample.rs")
	src, err := os.ReadFile(testFile)
	require.NoError(t, err)

	ext, err := ForPath(testFile)
	require.NoError(t, err)
	assert.Equal(t, "rust", ext.Language())

	units, err := ext.ExtractFromFile(testFile)
	require.NoError(t, err)
	unitsByName := byName(units)

	point := find(units, "Point", "struct")
	require.NotNil(t, point)
	assert.Contains(t, point.Description, "A point.")

	helper, ok := unitsByName["helper"]
	require.True(t, ok)
	assert.Equal(t, "function", helper.UnitType)
	assert.Equal(t, "pub fn helper() -> u8", helper.Signature)

	out, err := annotation.Parse(string(src))
	require.NoError(t, err)
	require.Len(t, out.Regions, 1)
	span, ok := out.Regions[0].OutputSpan()
	require.True(t, ok)

	inside := byName(Within(units, span))
	require.Len(t, inside, 2)

	impl, ok := inside["Point"]
	require.True(t, ok)
	assert.Equal(t, "impl", impl.UnitType)
	assert.Equal(t, "std::fmt::Display", impl.Receiver)

	fmtFn, ok := inside["fmt"]
	require.True(t, ok)
	assert.Equal(t, "method", fmtFn.UnitType)
	assert.Equal(t, "Point", fmtFn.Receiver)
}

func TestExtractor_Unsupported(t *testing.T) {
	_, err := NewExtractor("cobol")
	assert.Error(t, err)

	_, ok := LanguageFor("notes.txt")
	assert.False(t, ok)
	_, err = ForPath("notes.txt")
	assert.Error(t, err)
}
