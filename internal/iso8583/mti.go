package iso8583

import (
	"iso8583_parser/internal/spec"
)

const unknownLabel = "Unknown"

// decodeMTI reads the MTI at the start of h. It never fails: when neither
// the text nor the packed layout yields four digits, the first four
// characters are used as they are.
func decodeMTI(h string, tables spec.MTITables, cs Charset) MTIInfo {
	info := MTIInfo{Encoding: MTICoerced, Coerced: true}

	// Text MTIs are ASCII; EBCDIC is tried only when the decoder is set up
	// for EBCDIC text and the bytes are not ASCII digits.
	var text string
	if len(h) >= 8 {
		text = HexToText(h[:8], CharsetASCII)
		if !isDigits(text) && cs == CharsetEBCDIC {
			text = HexToText(h[:8], CharsetEBCDIC)
		}
	}

	switch {
	case isDigits(text):
		info.Raw = text
		info.Encoding = MTIText
		info.Coerced = false
		info.ByteRange = ByteRange{Start: 0, End: 8}
	case len(h) >= 4 && isDigits(h[:4]):
		info.Raw = h[:4]
		info.Encoding = MTIPacked
		info.Coerced = false
		info.ByteRange = ByteRange{Start: 0, End: 4}
	default:
		n := min(4, len(h))
		info.Raw = h[:n]
		info.ByteRange = ByteRange{Start: 0, End: n}
	}

	info.Version = digitInfo(info.Raw, 0, tables.Version)
	info.Class = digitInfo(info.Raw, 1, tables.Class)
	info.Function = digitInfo(info.Raw, 2, tables.Function)
	info.Origin = digitInfo(info.Raw, 3, tables.Origin)

	if d, ok := tables.Describe(info.Raw); ok {
		info.Description = d
	} else {
		info.Description = "Message Type " + info.Raw
	}
	return info
}

func digitInfo(raw string, pos int, table spec.DigitTable) DigitInfo {
	if pos >= len(raw) {
		return DigitInfo{Label: unknownLabel}
	}
	d := raw[pos]
	label, ok := table.Lookup(d)
	if !ok {
		label = unknownLabel
	}
	return DigitInfo{Digit: string(d), Label: label}
}

func isDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
