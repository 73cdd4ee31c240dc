package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

// dataFormat names a supported data file encoding.
type dataFormat string

const (
	formatJSON dataFormat = "json"
	formatYAML dataFormat = "yaml"
	formatTOML dataFormat = "toml"
)

func formatForPath(path string) (dataFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return "", fmt.Errorf("unsupported data file extension %q", filepath.Ext(path))
	}
}

// loadDataFile reads render data from path. "-" reads JSON from stdin and
// an empty path yields empty data.
func loadDataFile(path string, stdin io.Reader) (stencil.TemplateData, error) {
	if path == "" {
		return stencil.TemplateData{}, nil
	}
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return decodeData(raw, formatJSON)
	}

	format, err := formatForPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	data, err := decodeData(raw, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func decodeData(raw []byte, format dataFormat) (stencil.TemplateData, error) {
	data := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return stencil.TemplateData(data), nil
	}

	var err error
	switch format {
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		err = dec.Decode(&data)
		if err == nil {
			data = normalizeJSON(data).(map[string]interface{})
		}
	case formatYAML:
		err = yaml.Unmarshal(raw, &data)
	case formatTOML:
		err = toml.Unmarshal(raw, &data)
	default:
		err = fmt.Errorf("unknown data format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", format, err)
	}
	return stencil.TemplateData(data), nil
}

// normalizeJSON turns json.Number values into int64 when they are integral
// so that range() and integer formatting see integers.
func normalizeJSON(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, item := range x {
			x[k] = normalizeJSON(item)
		}
		return x
	case []interface{}:
		for i, item := range x {
			x[i] = normalizeJSON(item)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}

// parseImageFlags splits name=path pairs from --image flags.
func parseImageFlags(values []string) (map[string]string, error) {
	images := make(map[string]string, len(values))
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid image %q, want name=path", v)
		}
		images[name] = path
	}
	return images, nil
}
