package stencil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
)

const (
	mimetypePart = "mimetype"
	manifestPart = "META-INF/manifest.xml"
	contentPart  = "content.xml"
	stylesPart   = "styles.xml"
	picturesDir  = "Pictures/"
)

// templatedParts are the parts scanned for directives, in render order.
var templatedParts = []string{contentPart, stylesPart}

// odfPackage is an opened OpenDocument container. Parts not replaced are
// copied to the output without recompression.
type odfPackage struct {
	files    []*zip.File
	parts    map[string]*zip.File
	replaced map[string][]byte
	added    []addedPart
	manifest *Manifest
}

type addedPart struct {
	name string
	data []byte
}

// openPackage reads a container from memory.
func openPackage(data []byte) (*odfPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	pkg := &odfPackage{
		files:    zr.File,
		parts:    make(map[string]*zip.File, len(zr.File)),
		replaced: make(map[string][]byte),
	}
	for _, f := range zr.File {
		pkg.parts[f.Name] = f
	}
	if _, ok := pkg.parts[contentPart]; !ok {
		return nil, fmt.Errorf("not a valid OpenDocument file: missing %s", contentPart)
	}

	raw, err := pkg.ReadPart(manifestPart)
	if err != nil {
		return nil, fmt.Errorf("not a valid OpenDocument file: %w", err)
	}
	if pkg.manifest, err = ParseManifest(raw); err != nil {
		return nil, err
	}
	return pkg, nil
}

// HasPart reports whether the package holds name.
func (p *odfPackage) HasPart(name string) bool {
	if _, ok := p.replaced[name]; ok {
		return true
	}
	for _, a := range p.added {
		if a.name == name {
			return true
		}
	}
	_, ok := p.parts[name]
	return ok
}

// ReadPart returns the current bytes of name.
func (p *odfPackage) ReadPart(name string) ([]byte, error) {
	if data, ok := p.replaced[name]; ok {
		return data, nil
	}
	for _, a := range p.added {
		if a.name == name {
			return a.data, nil
		}
	}
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// SetPart replaces the bytes of an existing part.
func (p *odfPackage) SetPart(name string, data []byte) {
	p.replaced[name] = data
}

// AddPart stores a new part and registers it in the manifest.
func (p *odfPackage) AddPart(name string, data []byte, mediaType string) {
	p.added = append(p.added, addedPart{name: name, data: data})
	p.manifest.AddEntry(name, mediaType)
}

// Manifest returns the package manifest.
func (p *odfPackage) Manifest() *Manifest { return p.manifest }

// WriteTo writes the package. The mimetype part comes first and is stored
// uncompressed.
func (p *odfPackage) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	if f, ok := p.parts[mimetypePart]; ok {
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("failed to copy %s: %w", mimetypePart, err)
		}
	}

	if p.manifest.Modified() {
		p.replaced[manifestPart] = p.manifest.Bytes()
	}

	for _, f := range p.files {
		if f.Name == mimetypePart {
			continue
		}
		data, ok := p.replaced[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}
		if err := writePart(zw, f.Name, data); err != nil {
			return err
		}
	}
	for _, a := range p.added {
		if err := writePart(zw, a.name, a.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the destination directory
// and renames it over path on success.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return NewDocumentError("create", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return NewDocumentError("write", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return NewDocumentError("rename", path, err)
	}
	return nil
}

// newPartName returns a random name for an injected part.
func newPartName() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
