package cmap

import (
	"bytes"
	"testing"
)

func TestParseBfchar(t *testing.T) {
	data := []byte(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Test-UTF16 def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<000C> <0041>
<0007> <0042 0043>
endbfchar
endcmap
end
end
`)
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if rs, ok := table.Lookup(12); !ok || string(rs) != "A" {
		t.Errorf("Lookup(12) = %q, %v; want \"A\", true", string(rs), ok)
	}
	if rs, ok := table.Lookup(7); !ok || string(rs) != "BC" {
		t.Errorf("Lookup(7) = %q, %v; want \"BC\", true", string(rs), ok)
	}
}

func TestParseBfrangeContinuous(t *testing.T) {
	data := []byte(`1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<0010> <0012> <0061>
endbfrange
`)
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[Code]string{0x10: "a", 0x11: "b", 0x12: "c"}
	for code, s := range want {
		if rs, ok := table.Lookup(code); !ok || string(rs) != s {
			t.Errorf("Lookup(%#x) = %q, %v; want %q", int(code), string(rs), ok, s)
		}
	}
}

func TestParseBfrangeArray(t *testing.T) {
	data := []byte(`1 beginbfrange
<0003> <0004> [<0058> <0059>]
endbfrange
`)
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rs, _ := table.Lookup(3); string(rs) != "X" {
		t.Errorf("Lookup(3) = %q, want \"X\"", string(rs))
	}
	if rs, _ := table.Lookup(4); string(rs) != "Y" {
		t.Errorf("Lookup(4) = %q, want \"Y\"", string(rs))
	}
}

func TestParseSurrogatePair(t *testing.T) {
	// U+1D11E (musical G clef) is D834 DD1E in UTF-16BE.
	data := []byte(`1 beginbfchar
<0005> <D834DD1E>
endbfchar
`)
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rs, ok := table.Lookup(5)
	if !ok || len(rs) != 1 || rs[0] != 0x1D11E {
		t.Fatalf("Lookup(5) = %v, %v; want [U+1D11E]", rs, ok)
	}
}

func TestParseEmptyYieldsEmptyTable(t *testing.T) {
	table, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
}

func TestAssignValidation(t *testing.T) {
	table := New(2)
	if err := table.Assign(12, []rune{'A'}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := table.Assign(12, []rune{'A'}); err != nil {
		t.Fatalf("repeated Assign() error = %v", err)
	}
	if err := table.Assign(-1, []rune{'A'}); err == nil {
		t.Error("Assign(-1) accepted a negative code")
	}
	if err := table.Assign(3, nil); err == nil {
		t.Error("Assign accepted an empty value")
	}
	if err := table.Assign(4, []rune{0xD800}); err == nil {
		t.Error("Assign accepted a surrogate codepoint")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestAssignOverwriteKeepsKeysUnique(t *testing.T) {
	table := New(1)
	_ = table.Assign(7, []rune{'?'})
	_ = table.Assign(7, []rune{'!'})
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}
	if rs, _ := table.Lookup(7); string(rs) != "!" {
		t.Errorf("Lookup(7) = %q, want \"!\"", string(rs))
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	table := New(2)
	_ = table.Assign(12, []rune{'A'})
	_ = table.Assign(7, []rune{'?'})
	_ = table.Assign(0x20AC, []rune{'€'})

	out := table.MarshalCMap("FooFont")
	if len(out) == 0 {
		t.Fatal("MarshalCMap() returned no data")
	}
	parsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(marshal output) error = %v", err)
	}
	if parsed.Len() != table.Len() {
		t.Fatalf("round trip Len() = %d, want %d", parsed.Len(), table.Len())
	}
	for _, code := range table.Codes() {
		want, _ := table.Lookup(code)
		got, ok := parsed.Lookup(code)
		if !ok || string(got) != string(want) {
			t.Errorf("round trip Lookup(%d) = %q, want %q", int(code), string(got), string(want))
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	build := func() []byte {
		table := New(2)
		_ = table.Assign(900, []rune{'z'})
		_ = table.Assign(3, []rune{'a'})
		_ = table.Assign(77, []rune{'m'})
		return table.MarshalCMap("Det")
	}
	if !bytes.Equal(build(), build()) {
		t.Error("MarshalCMap() output differs across identical tables")
	}
}

func TestMarshalEmptyTable(t *testing.T) {
	if out := New(2).MarshalCMap("Empty"); out != nil {
		t.Errorf("MarshalCMap() on empty table = %q, want nil", out)
	}
}

func TestParsePrefersOneByteWidth(t *testing.T) {
	data := []byte(`1 begincodespacerange
<00> <FF>
endcodespacerange
1 beginbfchar
<41> <0041>
endbfchar
`)
	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out := table.MarshalCMap("Simple")
	if !bytes.Contains(out, []byte("<41> <0041>")) {
		t.Errorf("expected 2-digit code serialization, got:\n%s", out)
	}
}
