package stencil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes decoded image data.
type ImageInfo struct {
	Format    string // decoder name, e.g. "png"
	MediaType string
	Extension string
	Width     int
	Height    int
}

var imageMediaTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// parseDataURI parses a data URI and returns the MIME type and decoded data
func parseDataURI(dataURI string) (string, []byte, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	metadata, payload, ok := strings.Cut(dataURI[5:], ",")
	if !ok {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	if payload == "" {
		return "", nil, fmt.Errorf("no image data")
	}
	if !strings.HasSuffix(metadata, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}
	mimeType := strings.TrimSuffix(metadata, ";base64")
	if !strings.HasPrefix(mimeType, "image/") {
		return "", nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return mimeType, data, nil
}

// imageData turns a context value into image bytes. Strings are data URIs or
// base64 text; readers are read to the end.
func imageData(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty image data")
		}
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, fmt.Errorf("empty image data")
		}
		if strings.HasPrefix(s, "data:") {
			_, data, err := parseDataURI(s)
			return data, err
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
		return data, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, err
		}
		return imageData(data)
	default:
		return nil, fmt.Errorf("unsupported image value of type %T", value)
	}
}

// DecodeImageInfo reads the format and pixel size of data.
func DecodeImageInfo(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unrecognized image data: %w", err)
	}
	ext := format
	if format == "jpeg" {
		ext = "jpg"
	}
	mediaType, ok := imageMediaTypes[format]
	if !ok {
		mediaType = "image/" + format
	}
	return &ImageInfo{
		Format:    format,
		MediaType: mediaType,
		Extension: ext,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}
