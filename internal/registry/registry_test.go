package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/spec"
)

func writeTable(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestNew_HasBuiltin(t *testing.T) {
	r := New()
	assert.Equal(t, []string{spec.ProfileISO1987}, r.Names())

	p, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, spec.ProfileISO1987, p.Name)

	p, err = r.Lookup("ISO8583-1987")
	require.NoError(t, err)
	assert.Equal(t, spec.ProfileISO1987, p.Name)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := New().Lookup("acme")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = New().Decoder("acme", iso8583.CharsetASCII)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestDecoder_Cached(t *testing.T) {
	r := New()
	d1, err := r.Decoder(spec.ProfileISO1987, iso8583.CharsetASCII)
	require.NoError(t, err)
	d2, err := r.Decoder(spec.ProfileISO1987, iso8583.CharsetASCII)
	require.NoError(t, err)
	assert.Same(t, d1, d2)

	d3, err := r.Decoder(spec.ProfileISO1987, iso8583.CharsetEBCDIC)
	require.NoError(t, err)
	assert.NotSame(t, d1, d3)
}

func TestRegister_ReplacesCachedDecoder(t *testing.T) {
	r := New()
	before, err := r.Decoder("custom", iso8583.CharsetASCII)
	assert.Error(t, err)
	assert.Nil(t, before)

	r.Register(&Profile{Name: "custom", Fields: spec.Table{3: {Number: 3, Format: spec.Fixed, Type: spec.Numeric, MaxLength: 6, Name: "Processing Code"}}, MTI: spec.DefaultMTI()})
	d1, err := r.Decoder("custom", iso8583.CharsetASCII)
	require.NoError(t, err)

	r.Register(&Profile{Name: "custom", Fields: spec.ISO1987(), MTI: spec.DefaultMTI()})
	d2, err := r.Decoder("custom", iso8583.CharsetASCII)
	require.NoError(t, err)
	assert.NotSame(t, d1, d2)
	assert.Equal(t, 2, r.Count())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "acme.yaml", `
extends: iso8583-1987
fields:
  48: {format: LLLVAR, type: ans, max_length: 512, name: Acme Data}
`)
	writeTable(t, dir, "acme-emv.yml", `
name: acme-emv
extends: acme
fields:
  55: {format: LLLVAR, type: b, max_length: 511, category: card, name: Acme ICC}
`)
	writeTable(t, dir, "README.txt", "not a table")

	r := New()
	loaded, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "acme-emv"}, loaded)
	assert.Equal(t, []string{"acme", "acme-emv", spec.ProfileISO1987}, r.Names())

	p, err := r.Lookup("acme-emv")
	require.NoError(t, err)
	assert.Equal(t, "Acme Data", p.Fields[48].Name)
	assert.Equal(t, "Acme ICC", p.Fields[55].Name)
	assert.Equal(t, "Processing Code", p.Fields[3].Name)
	assert.Len(t, p.Fields, spec.MaxFieldNumber)

	d, err := r.Decoder("acme", iso8583.CharsetASCII)
	require.NoError(t, err)
	res := d.Decode("0100" + "0000000000010000" + "0005" + "48454C4C4F")
	require.True(t, res.Success)
	f, ok := res.Field(48)
	require.True(t, ok)
	assert.Equal(t, "Acme Data", f.Name)
	assert.Equal(t, "HELLO", f.Value)
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("unknown parent", func(t *testing.T) {
		dir := t.TempDir()
		writeTable(t, dir, "orphan.yaml", "extends: nowhere\nfields: {}\n")
		_, err := New().LoadDir(dir)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("cycle", func(t *testing.T) {
		dir := t.TempDir()
		writeTable(t, dir, "a.yaml", "extends: b\nfields: {}\n")
		writeTable(t, dir, "b.yaml", "extends: a\nfields: {}\n")
		_, err := New().LoadDir(dir)
		assert.ErrorIs(t, err, spec.ErrInvalidTable)
	})

	t.Run("missing dir", func(t *testing.T) {
		_, err := New().LoadDir(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}
