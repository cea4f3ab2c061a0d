package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Tag
	}{
		{"call", "//@den::mymacro!", Tag{Kind: KindCall, Name: "mymacro"}},
		{"call with padding and trailing comment", "  //    @den:: my macro !  // lol", Tag{Kind: KindCall, Name: "my macro"}},
		{"call with empty name", "// @den::!", Tag{Kind: KindCall, Name: ""}},
		{"call no bang", "//@den::mymacro", Tag{Kind: KindCallNoBang}},
		{"call no bang with trailing comment", "  //    @den:: my macro   // lol", Tag{Kind: KindCallNoBang}},
		{"bare comment", "//", Tag{Kind: KindAttribute}},
		{"comment", "  //    bla bla", Tag{Kind: KindAttribute}},
		{"doc comment is an attribute", "/// @den::x!", Tag{Kind: KindAttribute}},
		{"item", "  fn item() {}", Tag{Kind: KindItem}},
		{"item with trailing comment marker", "struct A; // @den::x!", Tag{Kind: KindItem}},
		{"start", "//```@den```", Tag{Kind: KindStart}},
		{"start with trailing comment", "  //  ```@den```  // lqlqlq", Tag{Kind: KindStart}},
		{"end", "//```@den```end:mymacro!", Tag{Kind: KindEnd, Name: "mymacro"}},
		{"end with padding", "   //  ```@den```  end:   my macro  ! // kh", Tag{Kind: KindEnd, Name: "my macro"}},
		{"end no bang", "//```@den```end:mymacro", Tag{Kind: KindEndNoBang}},
		{"end no bang with padding", "   //  ```@den```  end:   my macro   // kh", Tag{Kind: KindEndNoBang}},
		{"empty", "", Tag{Kind: KindEmpty}},
		{"whitespace", "     ", Tag{Kind: KindEmpty}},
		{"tabs and carriage return", "\t\t\r", Tag{Kind: KindEmpty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Classify(tt.line), "classification must be idempotent")
		})
	}
}

func TestClassify_NameIsSubstringOfLine(t *testing.T) {
	line := "// @den::  shared  !"
	tag := Classify(line)

	assert.Equal(t, KindCall, tag.Kind)
	assert.Equal(t, "shared", tag.Name)
	assert.Contains(t, line, tag.Name)
}

func TestMarkerLinesRoundTrip(t *testing.T) {
	assert.Equal(t, Tag{Kind: KindCall, Name: "gen"}, Classify(CallLine("\t", "gen")))
	assert.Equal(t, Tag{Kind: KindStart}, Classify(StartLine("    ")))
	assert.Equal(t, Tag{Kind: KindEnd, Name: "gen"}, Classify(EndLine("", "gen")))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "call", KindCall.String())
	assert.Equal(t, "end_no_bang", KindEndNoBang.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
