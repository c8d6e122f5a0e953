package iso8583

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yerden/go-util/bcd"

	"iso8583_parser/internal/spec"
)

var (
	ErrInvalidMTI     = errors.New("invalid MTI")
	ErrFieldNotInSpec = errors.New("field not in specification")
	ErrFieldTooLong   = errors.New("field value too long")
	ErrFieldValue     = errors.New("invalid field value")
)

// Encoder builds hex messages that the Decoder reads back. It exists to
// produce fixtures; it does not frame or sign messages.
type Encoder struct {
	fields  spec.FieldLookup
	charset Charset
	// TextMTI writes the MTI as four character bytes instead of packed BCD.
	TextMTI bool
}

// NewEncoder returns an Encoder for the given table.
func NewEncoder(fields spec.FieldLookup, cs Charset) *Encoder {
	return &Encoder{fields: fields, charset: cs}
}

// Encode lays out mti, the bitmap(s) and values in field order. Packed
// values are digit strings, binary values are hex and text values are plain
// characters. Fixed packed values are left padded with zeros and fixed text
// values right padded with spaces.
func (e *Encoder) Encode(mti string, values map[int]string) (string, error) {
	if !isDigits(mti) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMTI, mti)
	}

	var b strings.Builder
	if e.TextMTI {
		h, err := TextToHex(mti, e.charset)
		if err != nil {
			return "", err
		}
		b.WriteString(h)
	} else {
		b.WriteString(mti)
	}

	numbers := make([]int, 0, len(values))
	for n := range values {
		if n < 2 || n > spec.MaxFieldNumber {
			return "", fmt.Errorf("%w: DE%d", ErrFieldNotInSpec, n)
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var primary, secondary [8]byte
	for _, n := range numbers {
		if n > 64 {
			primary[0] |= 0x80
			setBit(&secondary, n-64)
		} else {
			setBit(&primary, n)
		}
	}
	fmt.Fprintf(&b, "%X", primary[:])
	if primary[0]&0x80 != 0 {
		fmt.Fprintf(&b, "%X", secondary[:])
	}

	for _, n := range numbers {
		fs, ok := e.fields.Lookup(n)
		if !ok {
			return "", fmt.Errorf("%w: DE%d", ErrFieldNotInSpec, n)
		}
		h, err := e.encodeField(fs, values[n])
		if err != nil {
			return "", fmt.Errorf("DE%d: %w", n, err)
		}
		b.WriteString(h)
	}
	return b.String(), nil
}

func setBit(bm *[8]byte, pos int) {
	idx := (pos - 1) / 8
	bit := 7 - ((pos - 1) % 8)
	bm[idx] |= 1 << bit
}

func (e *Encoder) encodeField(fs spec.FieldSpec, v string) (string, error) {
	enc := fs.Type.Encoding()

	length := len(v)
	if enc == spec.EncodingBinary {
		if len(v)%2 != 0 || invalidHexIndex(v) >= 0 {
			return "", fmt.Errorf("%w: binary value must be whole hex bytes", ErrFieldValue)
		}
		length = len(v) / 2
	}
	if length > fs.MaxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrFieldTooLong, length, fs.MaxLength)
	}

	if fs.Format == spec.Fixed {
		switch enc {
		case spec.EncodingPacked:
			v = strings.Repeat("0", fs.MaxLength-length) + v
		case spec.EncodingText:
			v += strings.Repeat(" ", fs.MaxLength-length)
		case spec.EncodingBinary:
			v += strings.Repeat("00", fs.MaxLength-length)
		}
		length = fs.MaxLength
	}

	var data string
	switch enc {
	case spec.EncodingPacked:
		packed, err := packDigits(v, fs.Type)
		if err != nil {
			return "", err
		}
		data = packed
	case spec.EncodingText:
		h, err := TextToHex(v, e.charset)
		if err != nil {
			return "", err
		}
		data = h
	case spec.EncodingBinary:
		data = strings.ToUpper(v)
	}

	if n := fs.Format.PrefixHexLen(); n > 0 {
		return fmt.Sprintf("%0*d", n, length) + data, nil
	}
	return data, nil
}

// packDigits left pads to a whole byte and packs two digits per byte.
// Track data may carry hex separators, which bypass the BCD encoder.
func packDigits(v string, t spec.DataType) (string, error) {
	if len(v)%2 != 0 {
		v = "0" + v
	}
	if t == spec.Track {
		if i := invalidHexIndex(v); i >= 0 {
			return "", fmt.Errorf("%w: %q is not a track character", ErrFieldValue, v[i])
		}
		return strings.ToUpper(v), nil
	}

	enc := bcd.NewEncoder(bcd.Standard)
	dst := make([]byte, bcd.EncodedLen(len(v)))
	n, err := enc.Encode(dst, []byte(v))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFieldValue, err)
	}
	return fmt.Sprintf("%X", dst[:n]), nil
}
