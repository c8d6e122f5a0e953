package iso8583

import (
	"iso8583_parser/internal/spec"
)

// Decoder turns hex text into a ParseResult. A Decoder only reads its
// tables, so one value may be shared by any number of goroutines.
type Decoder struct {
	fields  spec.FieldLookup
	mti     spec.MTITables
	charset Charset
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithFields sets the field specification table.
func WithFields(l spec.FieldLookup) Option {
	return func(d *Decoder) { d.fields = l }
}

// WithMTITables sets the MTI digit tables.
func WithMTITables(t spec.MTITables) Option {
	return func(d *Decoder) { d.mti = t }
}

// WithCharset sets the charset used for text data elements.
func WithCharset(cs Charset) Option {
	return func(d *Decoder) { d.charset = cs }
}

// NewDecoder returns a Decoder using the ISO 8583:1987 table unless
// overridden.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		fields:  spec.ISO1987(),
		mti:     spec.DefaultMTI(),
		charset: CharsetASCII,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Parse decodes input with the default Decoder.
func Parse(input string) *ParseResult {
	return defaultDecoder.Decode(input)
}

// Decode runs MTI, primary bitmap, optional secondary bitmap and the data
// element loop in that order. Only empty, short or non-hex input is rejected
// outright; every other problem is recorded and decoding goes as far as the
// bytes allow.
func (d *Decoder) Decode(input string) *ParseResult {
	h := Normalize(input)
	res := &ParseResult{
		Hex:      h,
		Fields:   []ParsedField{},
		Errors:   []ParseError{},
		Segments: []Segment{},
	}
	s := &state{hex: h, fields: d.fields, charset: d.charset, res: res}

	if len(h) < 4 {
		s.addError(KindFatal, CodeEmptyInput, 0, 0, "input has %d hex characters, at least 4 are required", len(h))
		return finish(res)
	}
	if i := invalidHexIndex(h); i >= 0 {
		s.addError(KindFatal, CodeInvalidHex, i, 0, "invalid hex character %q at offset %d", h[i], i)
		return finish(res)
	}

	mti := decodeMTI(h, d.mti, d.charset)
	res.MTI = &mti
	s.addSegment(mti.ByteRange.Start, mti.ByteRange.End, "MTI "+mti.Raw, SegmentMTI, 0)
	s.pos = mti.ByteRange.End

	if s.remaining() < bitmapHexLen {
		s.addError(KindStructural, CodePrimaryBitmap, s.pos, 0,
			"primary bitmap needs %d hex characters, %d remain", bitmapHexLen, s.remaining())
		return finish(res)
	}
	primary := decodeBitmap(h, s.pos, false)
	res.PrimaryBitmap = &primary
	s.addSegment(s.pos, s.pos+bitmapHexLen, "Primary Bitmap", SegmentBitmap, 0)
	s.pos += bitmapHexLen

	active := append([]int(nil), primary.ActiveFields...)
	if primary.HasSecondary {
		if s.remaining() < bitmapHexLen {
			s.addError(KindStructural, CodeSecondaryBitmap, s.pos, 1,
				"secondary bitmap needs %d hex characters, %d remain", bitmapHexLen, s.remaining())
		} else {
			secondary := decodeBitmap(h, s.pos, true)
			res.SecondaryBitmap = &secondary
			s.addSegment(s.pos, s.pos+bitmapHexLen, "Secondary Bitmap", SegmentBitmap, 1)
			s.pos += bitmapHexLen
			active = append(active, secondary.ActiveFields...)
		}
	}

	s.decodeFields(active)
	return finish(res)
}

func finish(res *ParseResult) *ParseResult {
	res.Success = succeeded(res.Errors)
	return res
}
