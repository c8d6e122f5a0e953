package iso8583

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport writes the flat text rendering of a result: MTI, bitmaps, one
// "DE{n} {name}: {value}" line per field and the errors, if any.
func WriteReport(w io.Writer, res *ParseResult) error {
	var b strings.Builder

	if res.MTI != nil {
		m := res.MTI
		fmt.Fprintf(&b, "MTI: %s (%s)\n", m.Raw, m.Description)
		fmt.Fprintf(&b, "  Version: %s %s\n", m.Version.Digit, m.Version.Label)
		fmt.Fprintf(&b, "  Class: %s %s\n", m.Class.Digit, m.Class.Label)
		fmt.Fprintf(&b, "  Function: %s %s\n", m.Function.Digit, m.Function.Label)
		fmt.Fprintf(&b, "  Origin: %s %s\n", m.Origin.Digit, m.Origin.Label)
		if m.Coerced {
			b.WriteString("  (MTI coerced from non-numeric input)\n")
		}
	}
	writeBitmap(&b, "Primary Bitmap", res.PrimaryBitmap)
	writeBitmap(&b, "Secondary Bitmap", res.SecondaryBitmap)

	for _, f := range res.Fields {
		fmt.Fprintf(&b, "DE%d %s: %s\n", f.Number, f.Name, f.Value)
	}

	if len(res.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  [%s] %s\n", e.Kind, e.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeBitmap(b *strings.Builder, title string, bm *BitmapInfo) {
	if bm == nil {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", title, bm.RawHex)
	fmt.Fprintf(b, "  Bits: %s\n", bm.BinaryBits)
}

// Report returns the flat text rendering of a result.
func Report(res *ParseResult) string {
	var b strings.Builder
	_ = WriteReport(&b, res)
	return b.String()
}
