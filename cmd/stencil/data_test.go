package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

func TestLoadDataFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		body string
	}{
		{"json", "data.json", `{"name": "Ada", "count": 3, "items": [{"price": 1.5}]}`},
		{"yaml", "data.yaml", "name: Ada\ncount: 3\nitems:\n  - price: 1.5\n"},
		{"yml", "data.yml", "name: Ada\ncount: 3\nitems:\n  - price: 1.5\n"},
		{"toml", "data.toml", "name = \"Ada\"\ncount = 3\n[[items]]\nprice = 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := loadDataFile(writeFile(t, dir, tt.file, []byte(tt.body)), nil)
			require.NoError(t, err)
			assert.Equal(t, "Ada", data["name"])
			assert.EqualValues(t, 3, data["count"])
			items, ok := data["items"].([]interface{})
			require.True(t, ok)
			require.Len(t, items, 1)
			item, ok := items[0].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, 1.5, item["price"])
		})
	}
}

func TestLoadDataFileSpecialPaths(t *testing.T) {
	data, err := loadDataFile("", nil)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = loadDataFile("-", strings.NewReader(`{"n": 10}`))
	require.NoError(t, err)
	assert.Equal(t, stencil.TemplateData{"n": int64(10)}, data)

	data, err = loadDataFile(writeFile(t, t.TempDir(), "empty.yaml", []byte("\n")), nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLoadDataFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadDataFile(writeFile(t, dir, "data.csv", []byte("a,b")), nil)
	assert.ErrorContains(t, err, `unsupported data file extension ".csv"`)

	_, err = loadDataFile(writeFile(t, dir, "bad.json", []byte("{")), nil)
	assert.ErrorContains(t, err, "decode json data")

	_, err = loadDataFile(writeFile(t, dir, "list.yaml", []byte("- a\n- b\n")), nil)
	assert.ErrorContains(t, err, "decode yaml data")

	_, err = loadDataFile(dir+"/missing.json", nil)
	assert.ErrorContains(t, err, "read data file")
}

func TestNormalizeJSON(t *testing.T) {
	data, err := decodeData([]byte(`{"i": 2, "f": 2.5, "nested": {"xs": [1, 1.25]}}`), formatJSON)
	require.NoError(t, err)
	assert.Equal(t, int64(2), data["i"])
	assert.Equal(t, 2.5, data["f"])
	assert.Equal(t, map[string]interface{}{"xs": []interface{}{int64(1), 1.25}}, data["nested"])
}

func TestParseImageFlags(t *testing.T) {
	images, err := parseImageFlags([]string{"logo=img/logo.png", " sig = sig.jpg "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"logo": "img/logo.png", "sig": "sig.jpg"}, images)

	for _, bad := range []string{"logo", "=a.png", "logo="} {
		_, err := parseImageFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}
