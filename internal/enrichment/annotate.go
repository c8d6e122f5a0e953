package enrichment

import (
	"context"
	"fmt"
	"io"
	"strings"

	"iso8583_parser/internal/iso8583"
)

// Note is one display annotation for a decoded field.
type Note struct {
	FieldNumber int    `json:"field_number"`
	Label       string `json:"label"`
	Text        string `json:"text"`
}

var responseCodes = map[string]string{
	"00": "Approved",
	"01": "Refer to card issuer",
	"03": "Invalid merchant",
	"04": "Pick up card",
	"05": "Do not honour",
	"12": "Invalid transaction",
	"13": "Invalid amount",
	"14": "Invalid card number",
	"30": "Format error",
	"41": "Lost card",
	"43": "Stolen card",
	"51": "Insufficient funds",
	"54": "Expired card",
	"55": "Incorrect PIN",
	"57": "Transaction not permitted to cardholder",
	"61": "Exceeds withdrawal limit",
	"91": "Issuer or switch inoperative",
	"96": "System malfunction",
}

// digits returns the declared number of digits of a packed field, without
// the pad nibble.
func digits(f iso8583.ParsedField) string {
	if f.Length > 0 && f.Length < len(f.Value) {
		return f.Value[len(f.Value)-f.Length:]
	}
	return f.Value
}

// Annotate builds display notes for the fields it knows about. issuers may
// be nil; an issuer lookup failure becomes a note rather than an error.
func Annotate(ctx context.Context, res *iso8583.ParseResult, issuers *IssuerCache) []Note {
	var notes []Note

	if f, ok := res.Field(2); ok {
		pan := digits(f)
		notes = append(notes, panNotes(ctx, 2, pan, issuers)...)
	}

	if f, ok := res.Field(35); ok {
		if t, ok := SplitTrack2(digits(f)); ok {
			notes = append(notes, Note{FieldNumber: 35, Label: "Track 2", Text: fmt.Sprintf("PAN %s, expiry %s, service code %s", MaskPAN(t.PAN), t.Expiry, t.ServiceCode)})
			if _, has := res.Field(2); !has {
				notes = append(notes, panNotes(ctx, 35, t.PAN, issuers)...)
			}
		}
	}

	if f, ok := res.Field(39); ok {
		code := strings.TrimSpace(f.Value)
		text, known := responseCodes[code]
		if !known {
			text = "Unknown response code"
		}
		notes = append(notes, Note{FieldNumber: 39, Label: "Response", Text: code + " " + text})
	}

	if f, ok := res.Field(55); ok {
		tags, err := ICCTags(f.Value)
		if err != nil {
			notes = append(notes, Note{FieldNumber: 55, Label: "ICC", Text: err.Error()})
		} else {
			notes = append(notes, iccNotes(tags, "")...)
		}
	}

	return notes
}

func panNotes(ctx context.Context, field int, pan string, issuers *IssuerCache) []Note {
	notes := []Note{{FieldNumber: field, Label: "PAN", Text: MaskPAN(pan)}}
	luhn := "fails Luhn check"
	if LuhnValid(pan) {
		luhn = "passes Luhn check"
	}
	notes = append(notes, Note{FieldNumber: field, Label: "Luhn", Text: luhn})

	if issuers == nil {
		return notes
	}
	r, ok, err := issuers.Lookup(ctx, pan)
	switch {
	case err != nil:
		notes = append(notes, Note{FieldNumber: field, Label: "Issuer", Text: "lookup failed: " + err.Error()})
	case ok:
		parts := []string{r.Issuer}
		for _, p := range []string{r.Scheme, r.Country, r.CardType} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		notes = append(notes, Note{FieldNumber: field, Label: "Issuer", Text: strings.Join(parts, ", ")})
	default:
		notes = append(notes, Note{FieldNumber: field, Label: "Issuer", Text: "unknown"})
	}
	return notes
}

func iccNotes(tags []ICCTag, indent string) []Note {
	var notes []Note
	for _, t := range tags {
		name := t.Name
		if name == "" {
			name = "Tag " + t.Tag
		}
		text := t.Value
		if len(t.Children) > 0 {
			text = fmt.Sprintf("%d elements", len(t.Children))
		}
		notes = append(notes, Note{FieldNumber: 55, Label: indent + t.Tag, Text: name + ": " + text})
		notes = append(notes, iccNotes(t.Children, indent+"  ")...)
	}
	return notes
}

// WriteNotes renders notes one per line under a heading.
func WriteNotes(w io.Writer, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Annotations:\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "  DE%d %s: %s\n", n.FieldNumber, n.Label, n.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
