// Package iso8583 decodes hex encoded ISO 8583 messages into a field indexed
// result. Decoding is a pure function of the input and the static tables in
// package spec; malformed input yields a partially populated result together
// with the errors that were met, never a Go error.
package iso8583

import (
	"fmt"

	"iso8583_parser/internal/spec"
)

// ByteRange is a half-open [Start, End) span of hex characters in the
// normalized input.
type ByteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of hex characters covered.
func (r ByteRange) Len() int { return r.End - r.Start }

// DigitInfo is one MTI position and its label.
type DigitInfo struct {
	Digit string `json:"digit"`
	Label string `json:"label"`
}

// MTIEncoding records how the MTI was recovered from the input.
type MTIEncoding string

const (
	// MTIText means the MTI travelled as four character bytes.
	MTIText MTIEncoding = "text"
	// MTIPacked means the MTI travelled as two packed BCD bytes.
	MTIPacked MTIEncoding = "packed"
	// MTICoerced means neither layout matched and the first four hex
	// characters were taken as-is.
	MTICoerced MTIEncoding = "coerced"
)

// MTIInfo is the decoded Message Type Indicator.
type MTIInfo struct {
	Raw         string      `json:"raw"`
	Version     DigitInfo   `json:"version"`
	Class       DigitInfo   `json:"message_class"`
	Function    DigitInfo   `json:"function"`
	Origin      DigitInfo   `json:"origin"`
	Description string      `json:"description"`
	Encoding    MTIEncoding `json:"encoding"`
	Coerced     bool        `json:"coerced"`
	ByteRange   ByteRange   `json:"byte_range"`
}

// BitmapInfo is a decoded primary or secondary bitmap.
type BitmapInfo struct {
	RawHex       string    `json:"raw_hex"`
	BinaryBits   string    `json:"binary_bits"`
	ActiveFields []int     `json:"active_fields"`
	HasSecondary bool      `json:"has_secondary"`
	Secondary    bool      `json:"secondary"`
	ByteRange    ByteRange `json:"byte_range"`
}

// IsSet reports whether field n is flagged by this bitmap.
func (b *BitmapInfo) IsSet(n int) bool {
	pos := n
	if b.Secondary {
		pos -= 64
	}
	if pos < 1 || pos > len(b.BinaryBits) {
		return false
	}
	return b.BinaryBits[pos-1] == '1'
}

// ParsedField is one decoded data element. Value keeps the transmitted
// representation: hex digits for packed and binary types, characters for
// text types.
type ParsedField struct {
	Number       int           `json:"field_number"`
	Name         string        `json:"name"`
	RawHex       string        `json:"raw_hex"`
	LengthPrefix string        `json:"length_prefix,omitempty"`
	Value        string        `json:"value"`
	Length       int           `json:"length"`
	ByteLength   int           `json:"byte_length"`
	Format       spec.Format   `json:"format"`
	Type         spec.DataType `json:"data_type"`
	Category     spec.Category `json:"category"`
	ByteRange    ByteRange     `json:"byte_range"`
}

// Segment categories that are not field categories.
const (
	SegmentMTI      = "mti"
	SegmentBitmap   = "bitmap"
	SegmentError    = "error"
	SegmentUnparsed = "unparsed"
)

// Segment annotates one structural unit of the input. In order, segments
// tile the normalized input.
type Segment struct {
	Hex         string    `json:"hex"`
	Label       string    `json:"label"`
	Category    string    `json:"category"`
	ByteRange   ByteRange `json:"byte_range"`
	FieldNumber int       `json:"field_number,omitempty"`
}

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	// KindFatal aborts decoding before the MTI.
	KindFatal ErrorKind = iota
	// KindStructural leaves the message partially decoded.
	KindStructural
	// KindField affects a single data element only.
	KindField
	// KindUnparsed reports bytes left after the field loop.
	KindUnparsed
)

func (k ErrorKind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindStructural:
		return "structural"
	case KindField:
		return "field"
	case KindUnparsed:
		return "unparsed"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for _, v := range []ErrorKind{KindFatal, KindStructural, KindField, KindUnparsed} {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// ErrorCode identifies the condition behind a ParseError.
type ErrorCode string

const (
	CodeEmptyInput        ErrorCode = "empty_input"
	CodeInvalidHex        ErrorCode = "invalid_hex"
	CodePrimaryBitmap     ErrorCode = "primary_bitmap_truncated"
	CodeSecondaryBitmap   ErrorCode = "secondary_bitmap_truncated"
	CodeMissingSpec       ErrorCode = "missing_spec"
	CodeInvalidLength     ErrorCode = "invalid_length"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeLengthPrefixShort ErrorCode = "length_prefix_truncated"
	CodeFieldTruncated    ErrorCode = "field_truncated"
	CodeTrailingData      ErrorCode = "trailing_data"
)

// ParseError is a decoding problem recorded in a ParseResult.
type ParseError struct {
	Kind        ErrorKind `json:"kind"`
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Offset      int       `json:"offset"`
	FieldNumber int       `json:"field_number,omitempty"`
}

func (e ParseError) Error() string {
	if e.FieldNumber > 0 {
		return fmt.Sprintf("%s at %d (DE%d): %s", e.Kind, e.Offset, e.FieldNumber, e.Message)
	}
	return fmt.Sprintf("%s at %d: %s", e.Kind, e.Offset, e.Message)
}

// ParseResult is everything recovered from one input.
type ParseResult struct {
	Success         bool          `json:"success"`
	Hex             string        `json:"hex"`
	MTI             *MTIInfo      `json:"mti,omitempty"`
	PrimaryBitmap   *BitmapInfo   `json:"primary_bitmap,omitempty"`
	SecondaryBitmap *BitmapInfo   `json:"secondary_bitmap,omitempty"`
	Fields          []ParsedField `json:"fields"`
	Errors          []ParseError  `json:"errors"`
	Segments        []Segment     `json:"segments"`
}

// Field returns the decoded data element n.
func (r *ParseResult) Field(n int) (ParsedField, bool) {
	for _, f := range r.Fields {
		if f.Number == n {
			return f, true
		}
	}
	return ParsedField{}, false
}

// FieldNumbers lists the decoded data elements in wire order.
func (r *ParseResult) FieldNumbers() []int {
	out := make([]int, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Number
	}
	return out
}

// succeeded is true when no error stops the message from being trusted.
// Field level problems and trailing data do not count.
func succeeded(errs []ParseError) bool {
	for _, e := range errs {
		if e.Kind == KindFatal || e.Kind == KindStructural {
			return false
		}
	}
	return true
}
