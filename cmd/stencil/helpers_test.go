package main

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testNamespaces = `xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
	`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" ` +
	`xmlns:xlink="http://www.w3.org/1999/xlink" office:version="1.2"`

// odtBytes builds a minimal text document whose office:text holds body.
func odtBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/vnd.oasis.opendocument.text"))
	require.NoError(t, err)

	parts := []struct{ name, data string }{
		{"META-INF/manifest.xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">` +
			`<manifest:file-entry manifest:full-path="/" manifest:media-type="application/vnd.oasis.opendocument.text"/>` +
			`<manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>` +
			`</manifest:manifest>`},
		{"content.xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<office:document-content ` + testNamespaces + `>` +
			`<office:body><office:text>` + body + `</office:text></office:body>` +
			`</office:document-content>`},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func greetingODT(t *testing.T) []byte {
	return odtBytes(t, `<text:p>Hello <text:user-field-get text:name="py3o.name">x</text:user-field-get></text:p>`)
}

// brokenODT closes a block that was never opened.
func brokenODT(t *testing.T) []byte {
	return odtBytes(t, `<text:p><text:a xlink:type="simple" xlink:href="py3o:///if">py3o:///if</text:a></text:p>`)
}

func contentOf(t *testing.T, doc []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(raw)
	}
	t.Fatal("content.xml not found")
	return ""
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
