package iso8583

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso8583_parser/internal/spec"
)

func TestEncoder_RoundTrip(t *testing.T) {
	values := map[int]string{
		2:   "4111111111111111",
		3:   "000000",
		4:   "000000001000",
		11:  "123456",
		35:  "4111111111111111D2512",
		37:  "RRN000000001",
		41:  "TERM0001",
		49:  "840",
		55:  "9F02060000000010005A084111111111111111",
		70:  "301",
		102: "ACCT-1",
	}
	want := map[int]string{
		2:   "4111111111111111",
		3:   "000000",
		4:   "000000001000",
		11:  "123456",
		35:  "04111111111111111D2512",
		37:  "RRN000000001",
		41:  "TERM0001",
		49:  "0840",
		55:  "9F02060000000010005A084111111111111111",
		70:  "0301",
		102: "ACCT-1",
	}

	enc := NewEncoder(spec.ISO1987(), CharsetASCII)
	msg, err := enc.Encode("0200", values)
	require.NoError(t, err)

	res := Parse(msg)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []int{2, 3, 4, 11, 35, 37, 41, 49, 55, 70, 102}, res.FieldNumbers())
	for n, v := range want {
		f, ok := res.Field(n)
		require.True(t, ok, "DE%d missing", n)
		assert.Equal(t, v, f.Value, "DE%d", n)
	}

	de2, _ := res.Field(2)
	assert.Equal(t, 16, de2.Length)
	assert.Equal(t, "16", de2.LengthPrefix)
	de55, _ := res.Field(55)
	assert.Equal(t, 19, de55.Length)
	assert.Equal(t, "0019", de55.LengthPrefix)
	assert.Equal(t, res.Hex, joinSegments(res))
}

func TestEncoder_TextMTIAndEBCDIC(t *testing.T) {
	enc := NewEncoder(spec.ISO1987(), CharsetEBCDIC)
	enc.TextMTI = true

	msg, err := enc.Encode("0810", map[int]string{39: "00", 41: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "F0F8F1F0", msg[:8])

	res := NewDecoder(WithCharset(CharsetEBCDIC)).Decode(msg)
	require.True(t, res.Success)
	assert.Equal(t, "0810", res.MTI.Raw)
	de41, _ := res.Field(41)
	assert.Equal(t, "T1      ", de41.Value)
}

func TestEncoder_Errors(t *testing.T) {
	enc := NewEncoder(spec.ISO1987(), CharsetASCII)

	tests := []struct {
		name   string
		mti    string
		values map[int]string
		want   error
	}{
		{name: "bad mti", mti: "08X0", want: ErrInvalidMTI},
		{name: "field 1", mti: "0800", values: map[int]string{1: "00"}, want: ErrFieldNotInSpec},
		{name: "too long", mti: "0800", values: map[int]string{11: "1234567"}, want: ErrFieldTooLong},
		{name: "non digit", mti: "0800", values: map[int]string{11: "12A456"}, want: ErrFieldValue},
		{name: "odd binary", mti: "0800", values: map[int]string{52: "ABC"}, want: ErrFieldValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.mti, tt.values)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
