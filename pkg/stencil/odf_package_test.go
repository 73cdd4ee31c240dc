package stencil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest(t *testing.T) {
	m, err := ParseManifest([]byte(newODTBuilder("").manifestXML()))
	require.NoError(t, err)
	assert.False(t, m.Modified())

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, ManifestEntry{FullPath: "/", MediaType: odtMediaType}, entries[0])

	m.AddEntry("Pictures/a.png", "image/png")
	assert.True(t, m.Modified())
	e, ok := m.Lookup("Pictures/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", e.MediaType)

	m.AddEntry("Pictures/a.png", "image/jpeg")
	assert.Len(t, m.Entries(), 4)
	e, _ = m.Lookup("Pictures/a.png")
	assert.Equal(t, "image/jpeg", e.MediaType)

	reparsed, err := ParseManifest(m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, m.Entries(), reparsed.Entries())
	assert.Contains(t, string(m.Bytes()), `<manifest:file-entry manifest:full-path="Pictures/a.png" manifest:media-type="image/jpeg"/>`)

	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestParseManifestErrors(t *testing.T) {
	_, err := ParseManifest([]byte("<notmanifest/>"))
	assert.True(t, IsDocumentError(err))

	_, err = ParseManifest([]byte("<broken"))
	assert.True(t, IsDocumentError(err))
}

func TestOpenPackage(t *testing.T) {
	data := newODTBuilder(para("x")).withFile("Pictures/old.png", "image/png", pngBytes(1, 1)).bytes()
	pkg, err := openPackage(data)
	require.NoError(t, err)

	assert.True(t, pkg.HasPart(contentPart))
	assert.True(t, pkg.HasPart("Pictures/old.png"))
	assert.False(t, pkg.HasPart("Pictures/new.png"))

	pkg.SetPart(contentPart, []byte("<replaced/>"))
	got, err := pkg.ReadPart(contentPart)
	require.NoError(t, err)
	assert.Equal(t, "<replaced/>", string(got))

	pkg.AddPart("Pictures/new.png", []byte("png"), "image/png")
	assert.True(t, pkg.HasPart("Pictures/new.png"))
	_, ok := pkg.Manifest().Lookup("Pictures/new.png")
	assert.True(t, ok)

	_, err = pkg.ReadPart("nope.xml")
	assert.Error(t, err)
}

func TestOpenPackageErrors(t *testing.T) {
	_, err := openPackage([]byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("styles.xml")
	_, _ = w.Write([]byte("<x/>"))
	require.NoError(t, zw.Close())
	_, err = openPackage(buf.Bytes())
	assert.ErrorContains(t, err, "missing content.xml")

	buf.Reset()
	zw = zip.NewWriter(&buf)
	w, _ = zw.Create(contentPart)
	_, _ = w.Write([]byte("<x/>"))
	require.NoError(t, zw.Close())
	_, err = openPackage(buf.Bytes())
	assert.ErrorContains(t, err, "META-INF/manifest.xml not found")
}

func TestPackageWriteTo(t *testing.T) {
	data := newODTBuilder(para("x")).withFile("Pictures/old.png", "image/png", pngBytes(1, 1)).bytes()
	pkg, err := openPackage(data)
	require.NoError(t, err)

	pkg.SetPart(contentPart, []byte("<new/>"))
	pkg.AddPart("Pictures/new.png", []byte("png"), "image/png")

	var out bytes.Buffer
	require.NoError(t, pkg.WriteTo(&out))

	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	assert.Equal(t, []string{mimetypePart, manifestPart, contentPart, stylesPart, "Pictures/old.png", "Pictures/new.png"}, names)
	assert.Equal(t, zip.Store, zr.File[0].Method)

	content, err := readPackagePart(out.Bytes(), contentPart)
	require.NoError(t, err)
	assert.Equal(t, "<new/>", content)

	manifest, err := readPackagePart(out.Bytes(), manifestPart)
	require.NoError(t, err)
	assert.Contains(t, manifest, `manifest:full-path="Pictures/new.png"`)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	mt, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, odtMediaType, string(mt))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.odt")

	require.NoError(t, writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("ok"))
		return err
	}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))

	err = writeFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	got, _ = os.ReadFile(path)
	assert.Equal(t, "ok", string(got), "failed write keeps the previous file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestNewPartName(t *testing.T) {
	a, err := newPartName()
	require.NoError(t, err)
	b, err := newPartName()
	require.NoError(t, err)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
