package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

func TestScopesAndAncestors(t *testing.T) {
	doc := parse(t, `<office:text xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0">`+
		`<table:table><table:table-row><table:table-cell><text:p><text:a>open</text:a></text:p></table:table-cell></table:table-row>`+
		`<table:table-row><table:table-cell><text:p>body</text:p></table:table-cell></table:table-row>`+
		`<table:table-row><table:table-cell><text:p><text:span><text:a>close</text:a></text:span></text:p></table:table-cell></table:table-row></table:table></office:text>`)

	links := doc.Root().FindAll(xml.NSText, "a")
	require.Len(t, links, 2)
	open, closing := links[0], links[1]

	scope := EnclosingScope(open)
	assert.True(t, scope.IsElement(xml.NSText, "p"))
	assert.True(t, IsScope(scope))
	assert.Equal(t, closing.Parent.Parent, EnclosingScope(closing))

	lca := CommonAncestor(open, closing)
	assert.True(t, lca.IsElement(xml.NSTable, "table"))

	rows := lca.FindAll(xml.NSTable, "table-row")
	assert.Equal(t, rows[0], ChildToward(lca, open))
	assert.Equal(t, rows[2], ChildToward(lca, closing))
	assert.Nil(t, ChildToward(rows[1], open))

	assert.True(t, Precedes(open, closing))
	assert.False(t, Precedes(closing, open))
	assert.True(t, Precedes(rows[0], open))
}

func TestMergeAdjacentText(t *testing.T) {
	p := xml.NewElement("text:p")
	p.AppendChild(xml.NewText("a"))
	p.AppendChild(xml.NewText("b"))
	p.AppendChild(xml.NewElement("text:tab"))
	p.AppendChild(xml.NewText("c"))
	p.AppendChild(xml.NewText("d"))

	assert.Equal(t, 2, MergeAdjacentText(p))
	assert.Equal(t, "<text:p>ab<text:tab/>cd</text:p>", p.String())
}
