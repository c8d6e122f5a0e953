package iso8583

import (
	"fmt"
	"strconv"

	"iso8583_parser/internal/spec"
)

// state is the cursor over one normalized input. It is created per Decode
// call and never shared.
type state struct {
	hex     string
	pos     int
	fields  spec.FieldLookup
	charset Charset
	res     *ParseResult
}

func (s *state) remaining() int { return len(s.hex) - s.pos }

func (s *state) addError(kind ErrorKind, code ErrorCode, offset, field int, format string, args ...any) {
	s.res.Errors = append(s.res.Errors, ParseError{
		Kind:        kind,
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Offset:      offset,
		FieldNumber: field,
	})
}

func (s *state) addSegment(start, end int, label, category string, field int) {
	s.res.Segments = append(s.res.Segments, Segment{
		Hex:         s.hex[start:end],
		Label:       label,
		Category:    category,
		ByteRange:   ByteRange{Start: start, End: end},
		FieldNumber: field,
	})
}

// decodeFields walks the active field numbers in order. It stops early only
// when the input runs out; field boundaries past that point are unknown.
func (s *state) decodeFields(active []int) {
	for _, n := range active {
		fs, ok := s.fields.Lookup(n)
		if !ok {
			s.addError(KindField, CodeMissingSpec, s.pos, n, "no specification for DE%d", n)
			continue
		}
		if !s.decodeField(fs) {
			break
		}
	}
	s.checkTrailing()
}

// decodeField consumes one data element and reports whether the loop may
// continue.
func (s *state) decodeField(fs spec.FieldSpec) bool {
	start := s.pos
	label := fmt.Sprintf("DE%d %s", fs.Number, fs.Name)

	switch fs.Format {
	case spec.Fixed, spec.LLVAR, spec.LLLVAR:
	default:
		s.addError(KindField, CodeUnsupportedFormat, start, fs.Number, "DE%d has unsupported format %s", fs.Number, fs.Format)
		return true
	}
	prefixLen := fs.Format.PrefixHexLen()

	length := fs.MaxLength
	var prefix string
	if prefixLen > 0 {
		if s.remaining() < prefixLen {
			s.addError(KindStructural, CodeLengthPrefixShort, start, fs.Number,
				"DE%d needs a %d character length prefix, %d remain", fs.Number, prefixLen, s.remaining())
			return false
		}
		prefix = s.hex[start : start+prefixLen]
		s.pos += prefixLen

		declared, err := strconv.Atoi(prefix)
		if err != nil {
			s.addError(KindField, CodeInvalidLength, start, fs.Number,
				"DE%d length prefix %q is not decimal", fs.Number, prefix)
			s.addSegment(start, s.pos, label+" (invalid length)", SegmentError, fs.Number)
			return true
		}
		if declared > fs.MaxLength {
			s.addError(KindField, CodeInvalidLength, start, fs.Number,
				"DE%d declared length %d exceeds maximum %d", fs.Number, declared, fs.MaxLength)
			s.addSegment(start, s.pos, label+" (invalid length)", SegmentError, fs.Number)
			return true
		}
		length = declared
	}

	need := dataHexLen(fs.Type.Encoding(), length)
	if s.remaining() < need {
		s.addError(KindStructural, CodeFieldTruncated, start, fs.Number,
			"DE%d needs %d hex characters, %d remain", fs.Number, need, s.remaining())
		if start < len(s.hex) {
			s.addSegment(start, len(s.hex), label+" (truncated)", SegmentError, fs.Number)
		}
		s.pos = len(s.hex)
		return false
	}

	data := s.hex[s.pos : s.pos+need]
	s.pos += need

	s.res.Fields = append(s.res.Fields, ParsedField{
		Number:       fs.Number,
		Name:         fs.Name,
		RawHex:       data,
		LengthPrefix: prefix,
		Value:        s.value(fs.Type.Encoding(), data),
		Length:       length,
		ByteLength:   need / 2,
		Format:       fs.Format,
		Type:         fs.Type,
		Category:     fs.Category,
		ByteRange:    ByteRange{Start: start, End: s.pos},
	})
	s.addSegment(start, s.pos, label, string(fs.Category), fs.Number)
	return true
}

// dataHexLen converts a logical length into hex characters on the wire.
func dataHexLen(enc spec.Encoding, length int) int {
	switch enc {
	case spec.EncodingPacked:
		return length + length%2
	case spec.EncodingBinary, spec.EncodingText:
		return length * 2
	}
	return length * 2
}

func (s *state) value(enc spec.Encoding, data string) string {
	switch enc {
	case spec.EncodingText:
		return HexToText(data, s.charset)
	case spec.EncodingPacked, spec.EncodingBinary:
		return data
	}
	return data
}

func (s *state) checkTrailing() {
	if s.pos >= len(s.hex) {
		return
	}
	s.addError(KindUnparsed, CodeTrailingData, s.pos, 0,
		"%d hex characters left unparsed", s.remaining())
	s.addSegment(s.pos, len(s.hex), "Unparsed data", SegmentUnparsed, 0)
	s.pos = len(s.hex)
}
