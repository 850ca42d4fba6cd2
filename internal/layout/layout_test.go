package layout_test

import (
	"errors"
	"testing"

	"lgen/internal/layout"
)

func TestStackSizeAndAlignment(t *testing.T) {
	tests := []struct {
		src   string
		ptr   int
		size  int
		align int
	}{
		{"i1", 8, 1, 1},
		{"i64", 8, 8, 8},
		{"f32", 8, 4, 4},
		{"str", 8, 16, 8},
		{"str", 4, 8, 4},
		{"list<i8>", 8, 16, 8},
		{"{}", 8, 0, 1},
		{"{i8, i64}", 8, 16, 8},
		{"{i64, i8}", 8, 16, 8},
		{"{i8, {}, i16}", 8, 4, 2},
		{"{{}, i32}", 8, 4, 4},
		{"union[(i64) | ()]", 8, 16, 8},
		{"union[(i8) | (i64, i64)]", 8, 24, 8},
		{"union[() | ()]", 8, 8, 8},
		{"rec_union[(i64, rec) | ()]", 8, 8, 8},
		{"rec_union[(i64, rec) | ()]", 4, 4, 4},
		{"nu<0>(i64, rec)", 8, 8, 8},
		{"fn(i64) -> i64", 8, 8, 8},
	}
	for _, tt := range tests {
		l := layout.MustParse(tt.src)
		if got := l.StackSize(tt.ptr); got != tt.size {
			t.Errorf("%s ptr=%d: size=%d, want %d", tt.src, tt.ptr, got, tt.size)
		}
		if got := l.Alignment(tt.ptr); got != tt.align {
			t.Errorf("%s ptr=%d: align=%d, want %d", tt.src, tt.ptr, got, tt.align)
		}
	}
}

func TestContainsRefcounted(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"i64", false},
		{"{i64, f64}", false},
		{"{i64, str}", true},
		{"list<i8>", true},
		{"union[(i64) | (f64)]", false},
		{"union[(i64) | (str)]", true},
		{"nw<0>[(i64, rec)]", true},
		{"fn() -> str", false},
	}
	for _, tt := range tests {
		if got := layout.MustParse(tt.src).ContainsRefcounted(); got != tt.want {
			t.Errorf("%s: ContainsRefcounted=%v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestParsePrintsCanonically(t *testing.T) {
	srcs := []string{
		"i64",
		"dict<str, list<f64>>",
		"{i8, {}, str}",
		"fn(i64, str) -> {}",
		"union[(i64) | () | (str, i8)]",
		"rec_union[(i64, rec) | ()]",
		"nnu(i64, list<rec>)",
		"nw<1>[(i64, rec) | (rec, rec)]",
		"nu<0>(i64, rec)",
	}
	for _, src := range srcs {
		l, err := layout.Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if got := l.String(); got != src {
			t.Errorf("String() = %q, want %q", got, src)
		}
		again := layout.MustParse(l.String())
		if !layout.Equal(l, again) {
			t.Errorf("%q: reparsed layout differs", src)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []string{
		"i7",
		"list<i64",
		"rec",
		"{rec}",
		"union[(rec)]",
		"nu<2>(i64)",
		"nu<0>({})",
		"nw<3>[(i64)]",
		"banana",
	}
	for _, src := range tests {
		if _, err := layout.Parse(src); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", src)
		}
	}

	_, err := layout.Parse("union[(rec)]")
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrStrayRecursivePointer {
		t.Fatalf("expected stray recursive pointer error, got %v", err)
	}
}

func TestUnionFieldsOf(t *testing.T) {
	nw := layout.MustParse("nw<1>[(i8) | (i16) | (i32)]")
	u := nw.Union
	if u.NumTags() != 4 {
		t.Fatalf("NumTags=%d, want 4", u.NumTags())
	}
	want := map[int]string{0: "i8", 2: "i16", 3: "i32"}
	for tag, w := range want {
		fields := u.FieldsOf(tag)
		if len(fields) != 1 || fields[0].String() != w {
			t.Errorf("FieldsOf(%d) = %v, want [%s]", tag, fields, w)
		}
	}
	if fields := u.FieldsOf(1); fields != nil {
		t.Errorf("nullable variant has fields %v", fields)
	}
	if !u.IsNullable(1) || u.IsNullable(0) {
		t.Errorf("IsNullable mismatch")
	}

	nu := layout.MustParse("nu<1>(i64, rec)").Union
	if nu.OtherID() != 0 {
		t.Errorf("OtherID=%d, want 0", nu.OtherID())
	}
	if len(nu.FieldsOf(0)) != 2 || nu.FieldsOf(1) != nil {
		t.Errorf("nullable unwrapped fields mismatch")
	}
}

func TestUnwrappedStruct(t *testing.T) {
	l := layout.MustParse("{{}, i64, {}}")
	inner, ok := l.Unwrapped()
	if !ok || inner.String() != "i64" {
		t.Fatalf("Unwrapped() = %v, %v", inner, ok)
	}
	if _, ok := layout.MustParse("{i64, i8}").Unwrapped(); ok {
		t.Fatalf("two-field struct must not unwrap")
	}
	if !layout.MustParse("{{}, {{}}}").IsZeroSized() {
		t.Fatalf("nested empty struct must be zero-sized")
	}
}

func TestRefcountHeaderBytes(t *testing.T) {
	x64 := layout.X86_64LinuxGNU()
	if got := x64.RefcountHeaderBytes(8); got != 8 {
		t.Fatalf("x86_64 header=%d, want 8", got)
	}
	w := layout.Wasm32()
	if got := w.RefcountHeaderBytes(8); got != 8 {
		t.Fatalf("wasm32 header for align 8 = %d, want two words", got)
	}
	if got := w.RefcountHeaderBytes(1); got != 4 {
		t.Fatalf("wasm32 header for align 1 = %d, want 4", got)
	}
	if x64.SmallStrBytes() != 16 {
		t.Fatalf("small string bytes = %d", x64.SmallStrBytes())
	}
}
