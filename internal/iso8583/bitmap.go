package iso8583

// bitmapHexLen is one 64-bit bitmap as hex.
const bitmapHexLen = 16

// decodeBitmap reads the 16 hex characters at start. Position 1 of a primary
// bitmap announces the secondary bitmap and is not reported as a field;
// secondary positions map to fields 65-128.
func decodeBitmap(h string, start int, secondary bool) BitmapInfo {
	raw := h[start : start+bitmapHexLen]
	bits := HexToBinary(raw)

	info := BitmapInfo{
		RawHex:       raw,
		BinaryBits:   bits,
		ActiveFields: make([]int, 0, 16),
		Secondary:    secondary,
		ByteRange:    ByteRange{Start: start, End: start + bitmapHexLen},
	}

	for i := 0; i < len(bits); i++ {
		if bits[i] != '1' {
			continue
		}
		pos := i + 1
		if secondary {
			info.ActiveFields = append(info.ActiveFields, pos+64)
			continue
		}
		if pos == 1 {
			info.HasSecondary = true
			continue
		}
		info.ActiveFields = append(info.ActiveFields, pos)
	}
	return info
}
