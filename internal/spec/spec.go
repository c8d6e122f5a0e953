// Package spec holds the static reference data the decoder consults: the
// data element specification table and the MTI digit tables.
package spec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFormat   = errors.New("invalid field format")
	ErrInvalidDataType = errors.New("invalid field data type")
	ErrInvalidTable    = errors.New("invalid field table")
)

// MaxFieldNumber is the highest data element addressable by a primary and
// secondary bitmap.
const MaxFieldNumber = 128

// Format is the length encoding of a data element.
type Format int

const (
	Fixed Format = iota
	LLVAR
	LLLVAR
)

func (f Format) String() string {
	switch f {
	case Fixed:
		return "FIXED"
	case LLVAR:
		return "LLVAR"
	case LLLVAR:
		return "LLLVAR"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// PrefixHexLen returns how many hex characters the length prefix occupies.
// LLLVAR lengths travel as two packed bytes.
func (f Format) PrefixHexLen() int {
	switch f {
	case LLVAR:
		return 2
	case LLLVAR:
		return 4
	}
	return 0
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFormat accepts FIXED, LLVAR and LLLVAR in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIXED", "F":
		return Fixed, nil
	case "LLVAR", "LL":
		return LLVAR, nil
	case "LLLVAR", "LLL":
		return LLLVAR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// DataType is the ISO content type of a data element.
type DataType int

const (
	Numeric DataType = iota
	Binary
	Alphanumeric
	AlphanumericSpecial
	Track
)

func (t DataType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Binary:
		return "binary"
	case Alphanumeric:
		return "alphanumeric"
	case AlphanumericSpecial:
		return "alphanumeric-special"
	case Track:
		return "track-format"
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseDataType accepts both the long names and the usual ISO abbreviations
// (n, b, an, ans, z).
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "numeric":
		return Numeric, nil
	case "b", "binary":
		return Binary, nil
	case "a", "an", "alphanumeric":
		return Alphanumeric, nil
	case "ans", "ns", "as", "alphanumeric-special":
		return AlphanumericSpecial, nil
	case "z", "track", "track-format":
		return Track, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDataType, s)
}

// Encoding is how a data type is laid out on the wire.
type Encoding int

const (
	// EncodingPacked is one nibble per digit, padded to whole bytes.
	EncodingPacked Encoding = iota
	// EncodingBinary is opaque bytes; lengths count bytes.
	EncodingBinary
	// EncodingText is one byte per character.
	EncodingText
)

// Encoding maps the data type to its wire layout.
func (t DataType) Encoding() Encoding {
	switch t {
	case Binary:
		return EncodingBinary
	case Alphanumeric, AlphanumericSpecial:
		return EncodingText
	default:
		return EncodingPacked
	}
}

// Category groups data elements for presentation.
type Category string

const (
	CategoryBitmap     Category = "bitmap"
	CategoryAccount    Category = "account"
	CategoryProcessing Category = "processing"
	CategoryAmount     Category = "amount"
	CategoryDateTime   Category = "datetime"
	CategoryTrace      Category = "trace"
	CategoryMerchant   Category = "merchant"
	CategoryTerminal   Category = "terminal"
	CategoryCard       Category = "card"
	CategoryNetwork    Category = "network"
	CategoryResponse   Category = "response"
	CategorySecurity   Category = "security"
	CategoryAdditional Category = "additional"
	CategoryReserved   Category = "reserved"
	CategoryPrivate    Category = "private"
)

// FieldSpec describes one data element.
//
// MaxLength counts digits for packed types, characters for text types and
// bytes for binary types.
type FieldSpec struct {
	Number    int      `json:"number"`
	Format    Format   `json:"format"`
	Type      DataType `json:"type"`
	MaxLength int      `json:"max_length"`
	Category  Category `json:"category"`
	Name      string   `json:"name"`
}

// FieldLookup resolves a field number to its specification.
type FieldLookup interface {
	Lookup(number int) (FieldSpec, bool)
}

// Table is a field number keyed specification table. Tables handed out by
// this package are shared and must be treated as read-only.
type Table map[int]FieldSpec

// Lookup implements FieldLookup.
func (t Table) Lookup(number int) (FieldSpec, bool) {
	fs, ok := t[number]
	return fs, ok
}

// Merge returns a new table holding t overlaid with the entries of other.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for n, fs := range t {
		out[n] = fs
	}
	for n, fs := range other {
		out[n] = fs
	}
	return out
}

// Validate checks every entry for a usable number and length.
func (t Table) Validate() error {
	for n, fs := range t {
		if n < 1 || n > MaxFieldNumber {
			return fmt.Errorf("%w: field number %d out of range", ErrInvalidTable, n)
		}
		if fs.Number != n {
			return fmt.Errorf("%w: field %d keyed as %d", ErrInvalidTable, fs.Number, n)
		}
		if fs.MaxLength <= 0 {
			return fmt.Errorf("%w: field %d has max length %d", ErrInvalidTable, n, fs.MaxLength)
		}
		if fs.Format == LLVAR && fs.MaxLength > 99 {
			return fmt.Errorf("%w: LLVAR field %d cannot exceed 99", ErrInvalidTable, n)
		}
		if fs.Format == LLLVAR && fs.MaxLength > 999 {
			return fmt.Errorf("%w: LLLVAR field %d cannot exceed 999", ErrInvalidTable, n)
		}
	}
	return nil
}
