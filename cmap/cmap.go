// Package cmap models the character-to-Unicode mapping table embedded in a
// PDF font (the ToUnicode CMap). The table is parsed into a structured
// in-memory form, mutated through Assign, and re-serialized as a whole on
// write. Byte-patching the stream in place is never attempted, so the
// surrounding font object cannot be corrupted by a partial edit.
package cmap

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Code is a character code as it appears in a content stream string. Codes
// are one byte for simple fonts and two bytes for Type0/CID fonts; either
// way they fit an int key.
type Code int

// Table is an in-memory ToUnicode table. Keys are unique by construction and
// values hold only valid Unicode scalar values.
type Table struct {
	entries   map[Code][]rune
	codeBytes int
}

// New returns an empty table. codeBytes is the source code width used when
// serializing (1 for simple fonts, 2 for CID fonts); values outside that
// range default to 2, the width CID-keyed fonts use.
func New(codeBytes int) *Table {
	if codeBytes != 1 && codeBytes != 2 {
		codeBytes = 2
	}
	return &Table{entries: make(map[Code][]rune), codeBytes: codeBytes}
}

// Len reports the number of mapped codes.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the mapping for code, if any.
func (t *Table) Lookup(code Code) ([]rune, bool) {
	rs, ok := t.entries[code]
	if !ok {
		return nil, false
	}
	out := make([]rune, len(rs))
	copy(out, rs)
	return out, true
}

// Codes returns all mapped codes in ascending order.
func (t *Table) Codes() []Code {
	out := make([]Code, 0, len(t.entries))
	for c := range t.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Assign sets the mapping for code. Assigning the same value again is a
// no-op; assigning a different value overwrites it. Codepoints must be valid
// Unicode scalar values.
func (t *Table) Assign(code Code, value []rune) error {
	if code < 0 {
		return fmt.Errorf("cmap: negative code %d", code)
	}
	if len(value) == 0 {
		return fmt.Errorf("cmap: empty value for code %d", code)
	}
	for _, r := range value {
		if !utf8.ValidRune(r) {
			return fmt.Errorf("cmap: invalid codepoint %#x for code %d", r, code)
		}
	}
	t.entries[code] = append([]rune(nil), value...)
	return nil
}

// Parse reads a ToUnicode CMap stream into a Table. It understands the
// bfchar, bfrange (both continuous and array form) and codespacerange
// sections; everything else in the CMap wrapper is skipped. A nil or empty
// input yields an empty table, which is the "table absent" case: the caller
// then builds a minimal table from this run's assignments alone.
func Parse(data []byte) (*Table, error) {
	t := New(2)
	if len(data) == 0 {
		return t, nil
	}
	widths := make(map[int]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	state := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(line, "endcodespacerange"),
			strings.HasSuffix(line, "endbfchar"),
			strings.HasSuffix(line, "endbfrange"):
			state = ""
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			state = "bfrange"
			continue
		}
		switch state {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) > 0 {
				if b := hexToBytes(hexes[0]); len(b) > 0 {
					widths[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			if len(hexes) < 2 {
				continue
			}
			src := hexToBytes(hexes[0])
			dst := utf16BEToRunes(hexToBytes(hexes[1]))
			if len(src) == 0 || len(dst) == 0 {
				continue
			}
			widths[len(src)] = struct{}{}
			t.entries[Code(bytesToInt(src))] = dst
		case "bfrange":
			line = joinUntilClosed(line, sc)
			hexes := hexTokens(line)
			if len(hexes) < 3 {
				continue
			}
			src := hexToBytes(hexes[0])
			lo := bytesToInt(src)
			hi := bytesToInt(hexToBytes(hexes[1]))
			if hi < lo {
				continue
			}
			widths[len(src)] = struct{}{}
			if strings.Contains(line, "[") {
				for i := 0; lo+i <= hi && 2+i < len(hexes); i++ {
					dst := utf16BEToRunes(hexToBytes(hexes[2+i]))
					if len(dst) > 0 {
						t.entries[Code(lo+i)] = dst
					}
				}
			} else {
				base := hexToBytes(hexes[2])
				baseVal := bytesToInt(base)
				for i := 0; lo+i <= hi; i++ {
					dst := utf16BEToRunes(intToBytes(baseVal+i, len(base)))
					if len(dst) > 0 {
						t.entries[Code(lo+i)] = dst
					}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cmap: scan: %w", err)
	}
	if _, ok := widths[1]; ok && len(widths) == 1 {
		t.codeBytes = 1
	}
	return t, nil
}

// MarshalCMap serializes the whole table as a ToUnicode CMap stream. The
// output is deterministic: codes ascend, bfchar sections are chunked at 100
// entries, and values are UTF-16BE hex. Equal tables produce byte-identical
// output, which is what makes a second repair run a no-op on disk.
func (t *Table) MarshalCMap(name string) []byte {
	codes := t.Codes()
	if len(codes) == 0 {
		return nil
	}
	if name == "" {
		name = "ToUnicode"
	}
	name = strings.ReplaceAll(name, " ", "") + "-UTF16"
	digits := t.codeBytes * 2

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s def\n", name)
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n")
	fmt.Fprintf(&buf, "<%0*X> <%0*X>\n", digits, int(codes[0]), digits, int(codes[len(codes)-1]))
	buf.WriteString("endcodespacerange\n")
	for i := 0; i < len(codes); {
		chunk := len(codes) - i
		if chunk > 100 {
			chunk = 100
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", chunk)
		for j := 0; j < chunk; j++ {
			c := codes[i+j]
			fmt.Fprintf(&buf, "<%0*X> <%s>\n", digits, int(c), utf16Hex(t.entries[c]))
		}
		buf.WriteString("endbfchar\n")
		i += chunk
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}

func joinUntilClosed(line string, sc *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for sc.Scan() {
		next := strings.TrimSpace(sc.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.Index(line, "<")
		if start < 0 {
			break
		}
		end := strings.Index(line[start+1:], ">")
		if end < 0 {
			break
		}
		tokens = append(tokens, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexToBytes(s string) []byte {
	if len(s)%2 == 1 {
		s = s + "0"
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		hi, ok1 := hexVal(s[i])
		lo, ok2 := hexVal(s[i+1])
		if !ok1 || !ok2 {
			return nil
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func bytesToInt(b []byte) int {
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v
}

func intToBytes(v, width int) []byte {
	if width <= 0 {
		width = 2
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16BEToRunes(b []byte) []rune {
	if len(b) == 0 {
		return nil
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(units) == 0 {
		return nil
	}
	return utf16.Decode(units)
}
