package normalize

import "strings"

// StripFence removes a surrounding markdown code fence. The opening line,
// language tag included, is always dropped; the closing line only when it
// is itself a fence.
func StripFence(raw string) string {
	content := strings.TrimSpace(raw)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	if len(lines) == 1 {
		return ""
	}
	body := lines[1:]
	if strings.HasPrefix(strings.TrimSpace(body[len(body)-1]), "```") {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n")
}

// isDroppedControl reports whether b is an ASCII control byte that
// Sanitize removes. Newline and tab survive.
func isDroppedControl(b byte) bool {
	if b == '\n' || b == '\t' {
		return false
	}
	return b < 0x20 || b == 0x7f
}

type scanState int

const (
	outsideString scanState = iota
	insideString
	afterEscape
)

func (s scanState) String() string {
	switch s {
	case outsideString:
		return "outsideString"
	case insideString:
		return "insideString"
	case afterEscape:
		return "afterEscape"
	default:
		return "unknown"
	}
}

// step advances the string-literal scanner by one byte. When b is a raw
// newline or tab inside a string literal, escape holds the letter to write
// after a backslash in its place; otherwise escape is 0 and b is copied.
// A backslash outside a string literal is copied and starts no escape.
func step(state scanState, b byte) (next scanState, escape byte) {
	switch state {
	case insideString:
		switch b {
		case '\\':
			return afterEscape, 0
		case '"':
			return outsideString, 0
		case '\n':
			return insideString, 'n'
		case '\t':
			return insideString, 't'
		}
		return insideString, 0
	case afterEscape:
		return insideString, 0
	default:
		if b == '"' {
			return insideString, 0
		}
		return outsideString, 0
	}
}

// Sanitize drops control bytes other than newline and tab, then escapes
// raw newlines and tabs that appear inside JSON string literals. Bytes of
// multi-byte UTF-8 sequences are never ASCII and are copied as they are.
func Sanitize(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 16)

	state := outsideString
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isDroppedControl(b) {
			continue
		}
		var escape byte
		state, escape = step(state, b)
		if escape != 0 {
			out.WriteByte('\\')
			out.WriteByte(escape)
			continue
		}
		out.WriteByte(b)
	}
	return out.String()
}
