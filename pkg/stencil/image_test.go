package stencil

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	png := pngBytes(2, 2)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	mime, data, err := parseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, png, data)

	for _, bad := range []string{
		"image/png;base64,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,",
		"data:image/png,AAAA",
		"data:text/plain;base64,AAAA",
		"data:image/png;base64,!!!",
	} {
		_, _, err := parseDataURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestImageData(t *testing.T) {
	png := pngBytes(2, 2)
	encoded := base64.StdEncoding.EncodeToString(png)

	for name, value := range map[string]interface{}{
		"bytes":    png,
		"base64":   encoded,
		"data uri": "data:image/png;base64," + encoded,
		"reader":   bytes.NewReader(png),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := imageData(value)
			require.NoError(t, err)
			assert.Equal(t, png, data)
		})
	}

	for _, bad := range []interface{}{[]byte{}, "  ", "not base64!", 42} {
		_, err := imageData(bad)
		assert.Error(t, err)
	}
}

func TestDecodeImageInfo(t *testing.T) {
	info, err := DecodeImageInfo(pngBytes(30, 20))
	require.NoError(t, err)
	assert.Equal(t, &ImageInfo{Format: "png", MediaType: "image/png", Extension: "png", Width: 30, Height: 20}, info)

	_, err = DecodeImageInfo([]byte("GIF89a"))
	assert.Error(t, err)

	_, err = DecodeImageInfo([]byte("nothing"))
	assert.Error(t, err)
}
