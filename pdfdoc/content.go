package pdfdoc

// Content stream scanning. Only enough of the operator language is understood
// to correlate Tf font selections with shown string operands; everything else
// is tokenized and discarded. Codes are kept as raw string bytes here and
// split per code width by the owning font.

type contentScanner struct {
	data []byte
	pos  int

	currentFont string
	lastName    string
	strings     [][]byte

	used map[string][][]byte
}

// usedCodes extracts, per font resource name, the raw string operands shown
// by Tj, TJ, ' and " while that font was selected.
func usedCodes(content []byte) map[string][][]byte {
	s := &contentScanner{data: content, used: make(map[string][][]byte)}
	s.run()
	return s.used
}

func (s *contentScanner) run() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isWhitespace(c):
			s.pos++
		case c == '%':
			s.skipComment()
		case c == '(':
			s.strings = append(s.strings, s.literalString())
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
			} else {
				s.strings = append(s.strings, s.hexString())
			}
		case c == '>':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '>' {
				s.pos += 2
			} else {
				s.pos++
			}
		case c == '/':
			s.lastName = s.name()
		case c == '[' || c == ']' || c == '{' || c == '}':
			s.pos++
		default:
			s.operator(s.token())
		}
	}
}

func (s *contentScanner) operator(tok string) {
	if tok == "" || isNumber(tok) {
		return // operand, keeps pending strings
	}
	switch tok {
	case "Tf":
		s.currentFont = s.lastName
	case "Tj", "'", "\"", "TJ":
		if s.currentFont != "" && len(s.strings) > 0 {
			s.used[s.currentFont] = append(s.used[s.currentFont], s.strings...)
		}
	case "BI":
		s.skipInlineImage()
	}
	s.strings = nil
}

// token reads a run of regular characters (numbers and operator names).
func (s *contentScanner) token() string {
	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) && !isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++ // lone delimiter already handled by run; never stall
		return ""
	}
	return string(s.data[start:s.pos])
}

func (s *contentScanner) name() string {
	s.pos++ // consume '/'
	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) && !isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	raw := s.data[start:s.pos]
	// #xx escapes inside names.
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			hi, okHi := hexDigit(raw[i+1])
			lo, okLo := hexDigit(raw[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, raw[i])
	}
	return string(out)
}

// literalString decodes a (...) string with escape sequences and balanced
// nested parentheses.
func (s *contentScanner) literalString() []byte {
	s.pos++ // consume '('
	depth := 1
	var out []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\n':
				// line continuation, emits nothing
			case '\r':
				if s.pos+1 < len(s.data) && s.data[s.pos+1] == '\n' {
					s.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && s.pos+1 < len(s.data); k++ {
						n := s.data[s.pos+1]
						if n < '0' || n > '7' {
							break
						}
						v = v<<3 | int(n-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			s.pos++
		case '(':
			depth++
			out = append(out, c)
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
			s.pos++
		}
	}
	return out
}

// hexString decodes a <...> string; an odd trailing digit is padded with 0.
func (s *contentScanner) hexString() []byte {
	s.pos++ // consume '<'
	var out []byte
	var hi byte
	haveHi := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		d, ok := hexDigit(c)
		if !ok {
			continue
		}
		if haveHi {
			out = append(out, hi<<4|d)
			haveHi = false
		} else {
			hi = d
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out
}

func (s *contentScanner) skipComment() {
	for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
		s.pos++
	}
}

// skipInlineImage advances past BI ... ID <binary> EI. The binary payload can
// contain anything, so EI is only accepted after whitespace.
func (s *contentScanner) skipInlineImage() {
	// Skip the parameter dict up to ID.
	for s.pos < len(s.data)-1 {
		if s.data[s.pos] == 'I' && s.data[s.pos+1] == 'D' {
			s.pos += 2
			break
		}
		s.pos++
	}
	for s.pos < len(s.data)-1 {
		if isWhitespace(s.data[s.pos]) && s.data[s.pos+1] == 'E' &&
			s.pos+2 < len(s.data) && s.data[s.pos+2] == 'I' {
			s.pos += 3
			return
		}
		s.pos++
	}
	s.pos = len(s.data)
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumber(tok string) bool {
	c := tok[0]
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func hexDigit(c byte) (byte, bool) {
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
