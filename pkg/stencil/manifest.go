package stencil

import (
	"fmt"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// ManifestEntry is one manifest:file-entry.
type ManifestEntry struct {
	FullPath  string
	MediaType string
}

// Manifest is META-INF/manifest.xml. Entries added after parsing are
// appended to the existing tree; the rest of the file is kept as read.
type Manifest struct {
	doc      *xml.Document
	modified bool
}

// ParseManifest parses manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, NewDocumentError("parse", manifestPart, err)
	}
	if !doc.Root().IsElement(xml.NSManifest, "manifest") {
		return nil, NewDocumentError("parse", manifestPart, fmt.Errorf("root element is %s", doc.Root().Name))
	}
	return &Manifest{doc: doc}, nil
}

// Entries lists the file entries in document order.
func (m *Manifest) Entries() []ManifestEntry {
	var out []ManifestEntry
	for _, n := range m.doc.Root().Elements() {
		if !n.IsElement(xml.NSManifest, "file-entry") {
			continue
		}
		out = append(out, ManifestEntry{
			FullPath:  n.AttrValue(xml.NSManifest, "full-path"),
			MediaType: n.AttrValue(xml.NSManifest, "media-type"),
		})
	}
	return out
}

// Lookup returns the entry for path.
func (m *Manifest) Lookup(path string) (ManifestEntry, bool) {
	for _, e := range m.Entries() {
		if e.FullPath == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// AddEntry registers path with mediaType. An existing entry is updated.
func (m *Manifest) AddEntry(path, mediaType string) {
	root := m.doc.Root()
	for _, n := range root.Elements() {
		if n.IsElement(xml.NSManifest, "file-entry") && n.AttrValue(xml.NSManifest, "full-path") == path {
			n.SetAttr(xml.NSManifest, "media-type", mediaType)
			m.modified = true
			return
		}
	}

	prefix, ok := root.LookupPrefix(xml.NSManifest)
	if !ok {
		prefix = "manifest"
	}
	entry := xml.NewElement(prefix+":file-entry",
		xml.Attr{Name: xml.Name{Prefix: prefix, Local: "full-path"}, Value: path},
		xml.Attr{Name: xml.Name{Prefix: prefix, Local: "media-type"}, Value: mediaType},
	)
	root.AppendChild(entry)
	root.AppendChild(xml.NewText("\n"))
	m.modified = true
}

// Modified reports whether entries were added or changed.
func (m *Manifest) Modified() bool { return m.modified }

// Bytes serializes the manifest.
func (m *Manifest) Bytes() []byte { return m.doc.Bytes() }
