// Package xml provides the document tree used for ODF content, styles and manifest parts.
//
// ODF packages store their content as plain XML (content.xml, styles.xml,
// META-INF/manifest.xml). The stencil engine needs to rewrite a small number of
// elements in those parts while leaving everything else exactly as the
// authoring tool produced it. This package parses a part into a mutable tree of
// *Node values that remember the bytes they were parsed from:
//
//   - An element that is not modified writes back its original start and end tag.
//   - A text node that is not modified writes back its original (escaped) bytes.
//   - Modified or newly created nodes are serialized from their fields.
//
// # Structure Organization
//
//   - types.go: Node, Name and Attr, tree navigation and mutation
//   - document.go: Document, parsing and serialization
//   - namespaces.go: ODF namespace URIs and conventional prefixes
//
// # Namespaces
//
// Names keep the prefix as written in the source. Matching against a namespace
// URI resolves the prefix through the xmlns declarations in scope, so templates
// using unusual prefixes still work:
//
//	doc, err := xml.Parse(data)
//	if err != nil {
//	    return err
//	}
//	for _, p := range doc.Root().FindAll(xml.NSText, "p") {
//	    fmt.Println(p.Text())
//	}
package xml
