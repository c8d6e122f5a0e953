package spec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISO1987_Complete(t *testing.T) {
	table := ISO1987()
	require.NoError(t, table.Validate())
	for n := 1; n <= MaxFieldNumber; n++ {
		fs, ok := table.Lookup(n)
		require.True(t, ok, "DE%d missing", n)
		assert.Equal(t, n, fs.Number)
		assert.NotEmpty(t, fs.Name, "DE%d", n)
	}
	_, ok := table.Lookup(129)
	assert.False(t, ok)
}

func TestISO1987_KnownFields(t *testing.T) {
	tests := []struct {
		n      int
		format Format
		dt     DataType
		max    int
	}{
		{2, LLVAR, Numeric, 19},
		{7, Fixed, Numeric, 10},
		{35, LLVAR, Track, 37},
		{41, Fixed, AlphanumericSpecial, 8},
		{52, Fixed, Binary, 8},
		{55, LLLVAR, Binary, 255},
		{70, Fixed, Numeric, 3},
	}
	for _, tt := range tests {
		fs, _ := ISO1987().Lookup(tt.n)
		assert.Equal(t, tt.format, fs.Format, "DE%d", tt.n)
		assert.Equal(t, tt.dt, fs.Type, "DE%d", tt.n)
		assert.Equal(t, tt.max, fs.MaxLength, "DE%d", tt.n)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"fixed": Fixed, "LL": LLVAR, " lllvar ": LLLVAR} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("LLLLVAR")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseDataType(t *testing.T) {
	for in, want := range map[string]DataType{"n": Numeric, "b": Binary, "an": Alphanumeric, "ans": AlphanumericSpecial, "z": Track} {
		got, err := ParseDataType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDataType("x+n")
	assert.ErrorIs(t, err, ErrInvalidDataType)
}

func TestDataType_Encoding(t *testing.T) {
	assert.Equal(t, EncodingPacked, Numeric.Encoding())
	assert.Equal(t, EncodingPacked, Track.Encoding())
	assert.Equal(t, EncodingBinary, Binary.Encoding())
	assert.Equal(t, EncodingText, Alphanumeric.Encoding())
	assert.Equal(t, EncodingText, AlphanumericSpecial.Encoding())
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"out of range", Table{129: {Number: 129, MaxLength: 1}}},
		{"mismatched key", Table{3: {Number: 4, MaxLength: 6}}},
		{"zero length", Table{3: {Number: 3}}},
		{"llvar too long", Table{2: {Number: 2, Format: LLVAR, MaxLength: 100}}},
		{"lllvar too long", Table{48: {Number: 48, Format: LLLVAR, MaxLength: 1000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.table.Validate(), ErrInvalidTable)
		})
	}
}

func TestTable_Merge(t *testing.T) {
	override := Table{48: {Number: 48, Format: LLLVAR, Type: AlphanumericSpecial, MaxLength: 512, Name: "Acme Data"}}
	merged := ISO1987().Merge(override)

	fs, _ := merged.Lookup(48)
	assert.Equal(t, "Acme Data", fs.Name)
	orig, _ := ISO1987().Lookup(48)
	assert.Equal(t, "Additional Data - Private", orig.Name)
	assert.Len(t, merged, MaxFieldNumber)
}

func TestMTITables(t *testing.T) {
	m := DefaultMTI()
	d, ok := m.Describe("0800")
	require.True(t, ok)
	assert.Equal(t, "Network Management Request", d)

	label, ok := m.Class.Lookup('8')
	require.True(t, ok)
	assert.Equal(t, "Network Management", label)

	_, ok = m.Version.Lookup('5')
	assert.False(t, ok)
}

func TestLoadYAML(t *testing.T) {
	doc := `
name: acme-host
extends: iso8583-1987
fields:
  48: {format: LLLVAR, type: ans, max_length: 512, category: additional, name: Acme Data}
  62: {format: LL, type: b, max_length: 32}
`
	tf, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "acme-host", tf.Name)
	assert.Equal(t, ProfileISO1987, tf.Extends)

	require.Len(t, tf.Fields, 2)
	assert.Equal(t, FieldSpec{Number: 48, Format: LLLVAR, Type: AlphanumericSpecial, MaxLength: 512, Category: CategoryAdditional, Name: "Acme Data"}, tf.Fields[48])
	assert.Equal(t, CategoryPrivate, tf.Fields[62].Category)
	assert.Equal(t, "Field 62", tf.Fields[62].Name)
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad format", "fields:\n  3: {format: VAR, type: n, max_length: 6}\n", ErrInvalidFormat},
		{"bad type", "fields:\n  3: {format: FIXED, type: q, max_length: 6}\n", ErrInvalidDataType},
		{"bad length", "fields:\n  2: {format: LLVAR, type: n, max_length: 120}\n", ErrInvalidTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := LoadYAML(strings.NewReader("fields: {}\nunknown: 1\n"))
	assert.Error(t, err)
}

func TestLoadYAMLFile_UsesStem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank-x.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  3: {format: FIXED, type: n, max_length: 6}\n"), 0o644))

	tf, err := LoadYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bank-x", tf.Name)
}
