package enrichment

import "strings"

// MaskPAN keeps the first six and last four digits of a card number and
// masks the rest. Numbers shorter than thirteen digits keep only the last
// four.
func MaskPAN(pan string) string {
	n := len(pan)
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n < 13:
		return strings.Repeat("*", n-4) + pan[n-4:]
	}
	return pan[:6] + strings.Repeat("*", n-10) + pan[n-4:]
}

// LuhnValid reports whether s is a digit string passing the mod 10 check.
func LuhnValid(s string) bool {
	if len(s) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Track2 is the cardholder portion of track 2 data.
type Track2 struct {
	PAN         string `json:"pan"`
	Expiry      string `json:"expiry"`
	ServiceCode string `json:"service_code"`
}

// SplitTrack2 splits track 2 data on its 'D' (or '=') separator.
func SplitTrack2(raw string) (Track2, bool) {
	raw = strings.ToUpper(raw)
	sep := strings.IndexByte(raw, 'D')
	if sep < 0 {
		sep = strings.IndexByte(raw, '=')
	}
	if sep < 0 {
		return Track2{}, false
	}
	t := Track2{PAN: raw[:sep]}
	rest := strings.TrimRight(raw[sep+1:], "F")
	if len(rest) >= 4 {
		t.Expiry = rest[:4]
	}
	if len(rest) >= 7 {
		t.ServiceCode = rest[4:7]
	}
	return t, true
}
