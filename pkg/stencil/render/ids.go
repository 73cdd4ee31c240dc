package render

import (
	"fmt"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// IDAttribute names an attribute whose value must be unique in a document.
type IDAttribute struct {
	Space string
	Local string
}

// DefaultIDAttributes are the document-unique id attributes repaired after render.
var DefaultIDAttributes = []IDAttribute{
	{Space: xml.NSXML, Local: "id"},
	{Space: xml.NSDraw, Local: "id"},
	{Space: xml.NSText, Local: "id"},
}

// IDRegistry tracks ids that exist in the output of one render and hands out
// fresh values that collide with none of them.
type IDRegistry struct {
	taken   map[string]bool
	claimed map[string]bool
	next    map[string]int
}

// NewIDRegistry creates an empty registry.
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{
		taken:   make(map[string]bool),
		claimed: make(map[string]bool),
		next:    make(map[string]int),
	}
}

// Observe records id as present somewhere in the output.
func (r *IDRegistry) Observe(id string) {
	r.taken[id] = true
}

// Claim marks the first use of id. It returns false when id was already claimed.
func (r *IDRegistry) Claim(id string) bool {
	r.taken[id] = true
	if r.claimed[id] {
		return false
	}
	r.claimed[id] = true
	return true
}

// Fresh returns a new claimed id derived from base.
func (r *IDRegistry) Fresh(base string) string {
	for {
		r.next[base]++
		id := fmt.Sprintf("%s_%d", base, r.next[base])
		if !r.taken[id] {
			r.taken[id] = true
			r.claimed[id] = true
			return id
		}
	}
}

// Contains reports whether id has been observed or handed out.
func (r *IDRegistry) Contains(id string) bool {
	return r.taken[id]
}

// ObserveDocument records every id attribute value found in doc.
func ObserveDocument(doc *xml.Document, reg *IDRegistry, attrs []IDAttribute) {
	doc.Node().Walk(func(n *xml.Node) bool {
		if n.Type != xml.ElementNode {
			return true
		}
		for _, a := range attrs {
			if v, ok := n.Attr(a.Space, a.Local); ok {
				reg.Observe(v)
			}
		}
		return true
	})
}

// RepairDuplicateIDs keeps the first occurrence of every id attribute value in
// doc and renames the later ones. Values already claimed in reg by previously
// repaired documents count as earlier occurrences. It returns the number of
// renamed attributes.
func RepairDuplicateIDs(doc *xml.Document, reg *IDRegistry) int {
	return RepairDuplicateIDAttributes(doc, reg, DefaultIDAttributes)
}

// RepairDuplicateIDAttributes is RepairDuplicateIDs for a custom attribute set.
func RepairDuplicateIDAttributes(doc *xml.Document, reg *IDRegistry, attrs []IDAttribute) int {
	ObserveDocument(doc, reg, attrs)
	renamed := 0
	doc.Node().Walk(func(n *xml.Node) bool {
		if n.Type != xml.ElementNode {
			return true
		}
		for _, a := range attrs {
			v, ok := n.Attr(a.Space, a.Local)
			if !ok || reg.Claim(v) {
				continue
			}
			n.SetAttr(a.Space, a.Local, reg.Fresh(v))
			renamed++
		}
		return true
	})
	return renamed
}
