package devinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	d, err := Lookup("dg2")
	require.NoError(t, err)

	assert.Equal(t, 12, d.Ver)
	assert.True(t, d.Needs(Wa14014617373))
	assert.True(t, d.Needs(Wa22016140776))

	d, err = Lookup("lnl")
	require.NoError(t, err)

	assert.Equal(t, 20, d.Ver)
	assert.False(t, d.Needs(Wa14014617373))

	_, err = Lookup("nope")
	assert.Error(t, err)
}

func TestPreset64bit(t *testing.T) {
	for _, tc := range []struct {
		name        string
		int64, fp64 bool
	}{
		{"skl", true, true},
		{"icl", false, false},
		{"tgl", false, false},
		{"dg2", true, false},
		{"lnl", true, true},
	} {
		d, err := Lookup(tc.name)
		require.NoError(t, err)

		assert.Equal(t, tc.int64, d.Has64bitInt, "%v int64", tc.name)
		assert.Equal(t, tc.fp64, d.Has64bitFloat, "%v fp64", tc.name)
	}
}

func TestLookupIsACopy(t *testing.T) {
	a, err := Lookup("tgl")
	require.NoError(t, err)

	a.Workarounds.Set(int(Wa22016140776))

	b, err := Lookup("tgl")
	require.NoError(t, err)

	assert.False(t, b.Needs(Wa22016140776))
}

func TestNamesOrdered(t *testing.T) {
	assert.Equal(t, []string{"skl", "icl", "tgl", "dg2", "mtl", "lnl"}, Names())
}

func TestLoadYAML(t *testing.T) {
	name := filepath.Join(t.TempDir(), "dev.yaml")

	err := os.WriteFile(name, []byte(`
name: custom
ver: 12
revision: 3
has_64bit_int: true
workarounds:
  - Wa_22016140776
`), 0o644)
	require.NoError(t, err)

	d, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "custom", d.Name)
	assert.Equal(t, 120, d.VerX10)
	assert.Equal(t, 3, d.Revision)
	assert.True(t, d.Has64bitInt)
	assert.True(t, d.Needs(Wa22016140776))
	assert.False(t, d.Needs(Wa14014617373))

	data, err := d.Marshal()
	require.NoError(t, err)

	d2, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, d.Name, d2.Name)
	assert.Equal(t, d.VerX10, d2.VerX10)
	assert.Equal(t, d.Needs(Wa22016140776), d2.Needs(Wa22016140776))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("name: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("ver: 9\nworkarounds: [123]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("ver: [\n"))
	assert.Error(t, err)
}
