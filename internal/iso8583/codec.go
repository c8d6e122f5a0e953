package iso8583

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// Placeholder replaces bytes that have no printable rendering.
const Placeholder = '.'

// Charset selects how text data elements map bytes to characters.
type Charset int

const (
	CharsetASCII Charset = iota
	// CharsetEBCDIC is IBM code page 037.
	CharsetEBCDIC
)

func (c Charset) String() string {
	if c == CharsetEBCDIC {
		return "ebcdic"
	}
	return "ascii"
}

// ParseCharset accepts "ascii" (or empty) and "ebcdic".
func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii":
		return CharsetASCII, nil
	case "ebcdic", "cp037":
		return CharsetEBCDIC, nil
	}
	return CharsetASCII, fmt.Errorf("unknown charset %q", s)
}

// Normalize strips whitespace and upper-cases the input.
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch r {
		case ' ', '\n', '\r', '\t':
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// invalidHexIndex returns the offset of the first non-hex character, or -1.
func invalidHexIndex(s string) int {
	for i := 0; i < len(s); i++ {
		if nibble(s[i]) < 0 {
			return i
		}
	}
	return -1
}

func nibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}

// HexToBinary expands each hex digit to its four bits, most significant
// first. Characters that are not hex digits expand to "????".
func HexToBinary(h string) string {
	var b strings.Builder
	b.Grow(len(h) * 4)
	for i := 0; i < len(h); i++ {
		n := nibble(h[i])
		if n < 0 {
			b.WriteString("????")
			continue
		}
		for bit := 3; bit >= 0; bit-- {
			if n&(1<<bit) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	return b.String()
}

// BinaryToHex packs a string of '0'/'1' back into upper-case hex. The input
// length must be a multiple of four.
func BinaryToHex(bits string) (string, error) {
	if len(bits)%4 != 0 {
		return "", fmt.Errorf("bit string length %d is not a multiple of 4", len(bits))
	}
	var b strings.Builder
	b.Grow(len(bits) / 4)
	for i := 0; i < len(bits); i += 4 {
		n := 0
		for _, c := range bits[i : i+4] {
			n <<= 1
			switch c {
			case '1':
				n |= 1
			case '0':
			default:
				return "", fmt.Errorf("invalid bit %q at %d", c, i)
			}
		}
		b.WriteByte("0123456789ABCDEF"[n])
	}
	return b.String(), nil
}

// HexToText renders hex as characters in the given charset. A trailing odd
// nibble is ignored.
func HexToText(h string, cs Charset) string {
	var b strings.Builder
	b.Grow(len(h) / 2)
	for i := 0; i+1 < len(h); i += 2 {
		hi, lo := nibble(h[i]), nibble(h[i+1])
		if hi < 0 || lo < 0 {
			b.WriteRune(Placeholder)
			continue
		}
		b.WriteRune(printable(byte(hi<<4|lo), cs))
	}
	return b.String()
}

func printable(c byte, cs Charset) rune {
	if cs == CharsetEBCDIC {
		r := charmap.CodePage037.DecodeByte(c)
		if r == ' ' || (unicode.IsPrint(r) && r != unicode.ReplacementChar) {
			return r
		}
		return Placeholder
	}
	if c >= 0x20 && c <= 0x7E {
		return rune(c)
	}
	return Placeholder
}

// TextToHex encodes characters in the given charset as upper-case hex.
func TextToHex(s string, cs Charset) (string, error) {
	if cs == CharsetEBCDIC {
		enc, err := charmap.CodePage037.NewEncoder().String(s)
		if err != nil {
			return "", fmt.Errorf("encode ebcdic: %w", err)
		}
		s = enc
	}
	return strings.ToUpper(hex.EncodeToString([]byte(s))), nil
}
