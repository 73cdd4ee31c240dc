package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// SoftBreaks returns the text:soft-page-break markers in doc.
func SoftBreaks(doc *xml.Document) []*xml.Node {
	return doc.Node().FindAll(xml.NSText, "soft-page-break")
}

// RemoveSoftBreaks deletes every soft page break marker from doc and returns
// how many were removed.
//
// A marker inside a paragraph only splits its text; the text nodes on both
// sides are joined again. A marker between two sibling elements that are one
// logical unit cut in two is removed and the trailing element is merged into
// the leading one. Spans are merged when they are equivalent; paragraphs are
// merged when they are equivalent, the leading one does not end a sentence and
// the trailing one starts in lower case.
func RemoveSoftBreaks(doc *xml.Document) int {
	markers := SoftBreaks(doc)
	for _, m := range markers {
		removeSoftBreak(m)
	}
	return len(markers)
}

func removeSoftBreak(m *xml.Node) {
	parent := m.Parent
	if parent == nil {
		return
	}
	before, after := prevElement(m), nextElement(m)
	m.Remove()

	if before != nil && after != nil && isSplit(before, after) {
		// drop the whitespace the authoring tool put between the halves
		for cur := before.NextSibling(); cur != nil && cur != after; {
			next := cur.NextSibling()
			if isBlank(cur) {
				cur.Remove()
			}
			cur = next
		}
		MergeInto(before, after)
	}
	MergeAdjacentText(parent)
}

func isSplit(before, after *xml.Node) bool {
	if !elementsEquivalent(before, after) {
		return false
	}
	if before.IsElement(xml.NSText, "span") {
		return true
	}
	if !before.IsElement(xml.NSText, "p") {
		return false
	}
	head := strings.TrimRightFunc(before.Text(), unicode.IsSpace)
	tail := strings.TrimLeftFunc(after.Text(), unicode.IsSpace)
	if head == "" || tail == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(head)
	if strings.ContainsRune(".!?:;", last) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(tail)
	return unicode.IsLower(first)
}
