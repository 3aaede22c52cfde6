package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tune, err := Parse([]byte(`
[tuning]
slab_units = 16
defer_queue = 2
mderef = false
`))
	require.NoError(t, err)

	exp := Default()
	exp.SlabUnits = 16
	exp.DeferQueue = 2
	exp.Mderef = false

	assert.Equal(t, exp, tune)
}

func TestParseZeroIsDefault(t *testing.T) {
	tune, err := Parse([]byte("[tuning]\nfree_scan = 0\n"))
	require.NoError(t, err)

	assert.Equal(t, Default().FreeScan, tune.FreeScan)
}

func TestParseInvalid(t *testing.T) {
	for _, data := range []string{
		"[tuning]\nslab_units = 4\n",
		"[tuning]\nslab_units = 128\nslab_max_units = 64\n",
		"[tuning]\ndefer_queue = -1\n",
		"[tuning]\npadrange_max = 1\n",
		"[tuning\n",
	} {
		_, err := Parse([]byte(data))
		assert.Error(t, err, "%s", data)
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tune.toml")

	err := os.WriteFile(p, []byte("[tuning]\nfold = false\n"), 0o644)
	require.NoError(t, err)

	tune, err := Load(p)
	require.NoError(t, err)

	assert.False(t, tune.Fold)
	assert.True(t, tune.Warnings)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
