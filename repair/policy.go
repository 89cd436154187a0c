package repair

import "unicode/utf8"

// Outcome classifies how a scanned glyph's mapping was settled.
type Outcome int

const (
	// OutcomeKept means the existing mapping was plausible and untouched.
	OutcomeKept Outcome = iota
	// OutcomeRecognized means recognition produced the mapping.
	OutcomeRecognized
	// OutcomeFallback means the glyph got the configured default character.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKept:
		return "kept"
	case OutcomeRecognized:
		return "recognized"
	case OutcomeFallback:
		return "fallback"
	}
	return "unknown"
}

// Plausible reports whether an existing Unicode mapping is usable as-is.
// Implausible mappings are rebuilt: empty values, invalid scalars, and the
// sentinel values producers emit when they had no real mapping (NUL, the
// replacement character, reversed BOM, BOM) all fail, as do Private Use Area
// assignments, which carry no text meaning outside the producing tool.
func Plausible(value []rune) bool {
	if len(value) == 0 {
		return false
	}
	r := value[0]
	if !utf8.ValidRune(r) {
		return false
	}
	switch r {
	case 0x0000, 0xFFFD, 0xFFFE, 0xFEFF:
		return false
	}
	if privateUse(r) {
		return false
	}
	return true
}

func privateUse(r rune) bool {
	return (r >= 0xE000 && r <= 0xF8FF) ||
		(r >= 0xF0000 && r <= 0xFFFFD) ||
		(r >= 0x100000 && r <= 0x10FFFD)
}
