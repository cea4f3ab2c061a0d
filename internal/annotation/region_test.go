package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func region(name string, call int, attributes, items, start, output, end LineMark) Region {
	return Region{
		Name:       name,
		Call:       call,
		Attributes: attributes,
		Items:      items,
		Start:      start,
		Output:     output,
		End:        end,
	}
}

var none LineMark

func TestNewRegion(t *testing.T) {
	assert.Equal(t, region("macro", 2, none, none, none, none, none), NewRegion("macro", 2))
}

func TestRegion_SetAttribute(t *testing.T) {
	b := region("", 1, none, At(3), none, none, none)
	b.SetAttribute(2)
	assert.False(t, b.Attributes.Valid, "attributes do not set when region has items")

	b = region("", 1, none, none, At(3), none, none)
	b.SetAttribute(2)
	assert.False(t, b.Attributes.Valid, "attributes do not set when region has start")

	b = region("", 1, At(2), none, none, none, none)
	b.SetAttribute(3)
	assert.Equal(t, At(2), b.Attributes, "attributes do not change when already set")

	b = region("", 1, none, none, none, none, none)
	b.SetAttribute(3)
	assert.Equal(t, At(3), b.Attributes)
}

func TestRegion_SetItem(t *testing.T) {
	b := region("", 1, none, none, none, none, none)
	b.SetItem(2)
	assert.Equal(t, At(2), b.Items, "items set when start is unset")
	assert.False(t, b.Output.Valid, "output untouched when start is unset")

	b.SetItem(3)
	assert.Equal(t, At(2), b.Items, "only the first item is remembered")

	b = region("", 1, none, At(2), At(3), none, none)
	b.SetItem(4)
	assert.Equal(t, At(2), b.Items, "items do not change when start is set")
	assert.Equal(t, At(4), b.Output, "output sets when start is set")

	b.SetItem(5)
	assert.Equal(t, At(4), b.Output, "only the first output item is remembered")

	b = region("", 1, none, At(2), At(3), At(4), At(5))
	b.SetItem(12)
	assert.Equal(t, At(2), b.Items, "frozen after end")
	assert.Equal(t, At(4), b.Output, "frozen after end")
}

func TestRegion_SetStart(t *testing.T) {
	b := region("", 1, none, none, At(2), none, none)
	assert.ErrorIs(t, b.SetStart(3), ErrStartRejected, "errors when start already set")
	assert.Equal(t, At(2), b.Start)

	b = region("", 1, none, none, none, At(3), none)
	assert.ErrorIs(t, b.SetStart(4), ErrStartRejected, "errors when output already set")
	assert.False(t, b.Start.Valid)

	b = region("", 1, none, none, none, none, At(3))
	assert.ErrorIs(t, b.SetStart(4), ErrStartRejected, "errors when end already set")

	b = region("", 1, none, none, none, none, none)
	require.NoError(t, b.SetStart(4))
	assert.Equal(t, At(4), b.Start)
}

func TestRegion_SetEnd(t *testing.T) {
	b := region("", 1, none, none, At(2), none, At(3))
	assert.ErrorIs(t, b.SetEnd(4), ErrEndRejected)
	assert.Equal(t, At(3), b.End)

	b = region("", 1, none, none, At(2), none, none)
	require.NoError(t, b.SetEnd(3))
	assert.Equal(t, At(3), b.End)
}

func TestRegion_Validate(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		want   error
	}{
		{"bare call", region("m", 0, none, none, none, none, none), nil},
		{"items without start", region("m", 0, none, At(1), none, none, none), ErrMissingStart},
		{"output without end", region("m", 0, none, none, At(1), At(2), none), ErrMissingEnd},
		{"missing start wins", region("m", 0, none, At(1), none, At(2), none), ErrMissingStart},
		{"complete", region("m", 0, At(1), At(2), At(3), At(4), At(5)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegion_Spans(t *testing.T) {
	r := region("m", 0, At(1), At(2), At(4), At(5), At(7))

	assert.Equal(t, Span{From: 0, To: 2}, r.HeaderSpan())

	in, ok := r.InputSpan()
	require.True(t, ok)
	assert.Equal(t, Span{From: 2, To: 4}, in)
	assert.Equal(t, 2, in.Len())

	out, ok := r.OutputSpan()
	require.True(t, ok)
	assert.Equal(t, Span{From: 5, To: 7}, out)
	assert.True(t, out.Contains(6))
	assert.False(t, out.Contains(7))

	bare := NewRegion("m", 3)
	assert.Equal(t, Span{From: 3, To: 4}, bare.HeaderSpan())
	_, ok = bare.InputSpan()
	assert.False(t, ok)
	_, ok = bare.OutputSpan()
	assert.False(t, ok)
}

func TestLineMark_JSON(t *testing.T) {
	r := region("m", 0, none, none, At(1), none, At(2))
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"m","call":0,"attributes":null,"items":null,"start":1,"output":null,"end":2}`, string(data))

	var back Region
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}
