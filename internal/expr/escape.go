// Package expr implements the boundary expression dialect of spec §6:
// $(Name) property expansion, @(Type[, 'sep'][->'%(Meta)']) item lists, and
// %(Meta) / %(Type.Meta) metadata references, plus the %xx hex-escape
// round-trip. Grounded on the teacher's internal/query/lexer.go — a
// hand-rolled rune-at-a-time scanner producing a typed token stream — since
// this dialect, like the teacher's query language, is a bit-exact boundary
// syntax with no ecosystem library in the retrieval pack addressing it.
package expr

import (
	"strconv"
	"strings"
)

// Escape hex-encodes the reserved expression-dialect characters in s so
// that the result, when later passed through Unescape, round-trips byte
// for byte (spec §6: "a;1" <-> "a%3b1", "a(2" <-> "a%282").
func Escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte("%$@()'\";", c) >= 0 {
			b.WriteByte('%')
			b.WriteString(strings.ToLower(strconv.FormatInt(int64(c), 16)))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape decodes %xx hex sequences back to their raw bytes, leaving any
// %-sequence that is not exactly two valid hex digits untouched.
func Unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
