package stencil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

func parseContent(t *testing.T, body string) *xml.Document {
	t.Helper()
	doc, err := xml.ParseString(newODTBuilder(body).contentXML())
	require.NoError(t, err)
	return doc
}

func TestParseInstruction(t *testing.T) {
	tests := []struct {
		payload string
		kind    DirectiveKind
		expr    string
	}{
		{`for="item in items"`, LoopOpen, "item in items"},
		{`for = 'i, row in rows'`, LoopOpen, "i, row in rows"},
		{`for=“item in order.items”`, LoopOpen, "item in order.items"},
		{"/for", LoopClose, ""},
		{" /if ", IfClose, ""},
		{`if="a and b"`, IfOpen, "a and b"},
		{`function="format_date(d)"`, FunctionCall, "format_date(d)"},
		{"format_date(d, '%d.%m.%Y')", FunctionCall, "format_date(d, '%d.%m.%Y')"},
		{"item.name", Expression, "item.name"},
		{"iffy", Expression, "iffy"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			kind, expr, err := ParseInstruction(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.expr, expr)
		})
	}
}

func TestParseInstructionErrors(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`for "item in items"`, `Missing '=' in instruction 'for "item in items"'`},
		{"/while", "Unknown closing instruction '/while'"},
		{`for="items"`, `Invalid loop in instruction 'for="items"'`},
		{`if=""`, `Empty value in instruction 'if=""'`},
		{"  ", "Empty instruction"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, _, err := ParseInstruction(tt.payload)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.True(t, IsTemplateErrorKind(err, ErrGrammar))
		})
	}
}

func TestDirectiveKind(t *testing.T) {
	assert.True(t, LoopOpen.IsOpen())
	assert.True(t, IfClose.IsClose())
	assert.False(t, Expression.IsOpen())
	assert.Equal(t, "for", LoopClose.Block())
	assert.Equal(t, "if", IfOpen.Block())
	assert.Equal(t, "", ImageBind.Block())
	assert.Equal(t, "/if", IfClose.String())
	assert.Equal(t, "hyperlink", Hyperlink.String())
}

func TestParseImageMarker(t *testing.T) {
	b, err := parseImageMarker("py3o.staticimage.logo")
	require.NoError(t, err)
	assert.Equal(t, &ImageBinding{Static: true, Name: "logo", KeepRatio: true}, b)

	b, err = parseImageMarker("py3o.image(item.photo)")
	require.NoError(t, err)
	assert.Equal(t, &ImageBinding{Name: "item.photo", KeepRatio: true}, b)

	b, err = parseImageMarker("py3o.image(pick(a, b), keep_ratio=False)")
	require.NoError(t, err)
	assert.Equal(t, &ImageBinding{Name: "pick(a, b)", KeepRatio: false}, b)

	b, err = parseImageMarker("Frame1")
	require.NoError(t, err)
	assert.Nil(t, b)

	for _, name := range []string{"py3o.image(x", "py3o.image(x, size=1)", "py3o.image()", "py3o.staticimage.", "py3o.image(x, keep_ratio=maybe)"} {
		_, err := parseImageMarker(name)
		assert.Error(t, err, name)
	}
}

func TestValidateLink(t *testing.T) {
	payload, err := validateLink("py3o://for=%22x%20in%20xs%22", `py3o://for="x in xs"`)
	require.NoError(t, err)
	assert.Equal(t, `for="x in xs"`, payload)

	payload, err = validateLink("py3o:// /for ", " /for")
	require.NoError(t, err)
	assert.Equal(t, "/for", payload)

	_, err = validateLink("py3o://a", "py3o://b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url and text do not match in")

	_, err = validateLink("py3o://a", "  ")
	assert.EqualError(t, err, "Text not found for link: a")
}

func TestScan(t *testing.T) {
	body := para(link(`if="x"`)) +
		para(`<text:a xlink:type="simple" xlink:href="https://example.com">site</text:a>`) +
		para(inputField("name")) +
		para(userField("upper(name)")) +
		para(`<text:user-field-get text:name="Author">a</text:user-field-get>`) +
		para(imageFrame("py3o.image(pic)", "1cm", "1cm")) +
		para(imageFrame("Frame1", "1cm", "1cm")) +
		para(link("/if"))

	directives, err := Scan(parseContent(t, body))
	require.NoError(t, err)
	require.Len(t, directives, 5)

	kinds := make([]DirectiveKind, len(directives))
	for i, d := range directives {
		kinds[i] = d.Kind
		require.NotNil(t, d.Scope)
		assert.Equal(t, "p", d.Scope.Name.Local)
	}
	assert.Equal(t, []DirectiveKind{IfOpen, Expression, FunctionCall, ImageBind, IfClose}, kinds)
	assert.Equal(t, Hyperlink, directives[0].Encoding)
	assert.Equal(t, Attribute, directives[1].Encoding)
	assert.Equal(t, "pic", directives[3].Expr)
	assert.Equal(t, "pic", directives[3].Image.Name)

	fields, err := Scan(parseContent(t, body), UserFieldExtractor{})
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "upper(name)", fields[0].Raw)
}

func TestScanStopsAtFirstError(t *testing.T) {
	body := para(`<text:a xlink:type="simple" xlink:href="py3o://a">py3o://b</text:a>`) + para(link("/nope"))
	_, err := Scan(parseContent(t, body))
	require.Error(t, err)
	assert.True(t, IsTemplateErrorKind(err, ErrStructure))
}

func TestBalanceDirectives(t *testing.T) {
	body := para(link(`for="r in rows"`)) +
		para(link(`if="r.ok"`)) +
		para(userField("r.name")) +
		para(link("/if")) +
		para(link("/for"))
	directives, err := Scan(parseContent(t, body))
	require.NoError(t, err)

	blocks, err := BalanceDirectives(directives)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	inner, outer := blocks[0], blocks[1]
	assert.Equal(t, IfOpen, inner.Open.Kind)
	assert.Equal(t, 1, inner.Depth)
	assert.Len(t, inner.Body(), 1)
	assert.Equal(t, LoopOpen, outer.Open.Kind)
	assert.Equal(t, 0, outer.Depth)
	assert.Len(t, outer.Body(), 3)
	assert.Equal(t, "text", outer.Ancestor.Name.Local)
}

func TestBalanceDirectivesTableRows(t *testing.T) {
	row := func(inner string) string {
		return `<table:table-row><table:table-cell>` + para(inner) + `</table:table-cell></table:table-row>`
	}
	body := `<table:table table:name="T">` +
		row(link(`for="r in rows"`)) + row(userField("r")) + row(link("/for")) +
		`</table:table>`
	directives, err := Scan(parseContent(t, body))
	require.NoError(t, err)

	blocks, err := BalanceDirectives(directives)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "table", blocks[0].Ancestor.Name.Local)
	assert.Equal(t, "table-row", blocks[0].OpenCarrier.Name.Local)
	assert.Len(t, blocks[0].Body(), 1)
}

func TestBalanceDirectivesErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unopened", para(link("/for")), "No open instruction for /for"},
		{"unclosed", para(link(`if="x"`)), `No closing instruction for 'if="x"'`},
		{"mismatch", para(link(`for="x in xs"`)) + para(link("/if")), `Instruction /if does not match open instruction 'for="x in xs"'`},
		{"same scope", para(link(`if="x"`) + "text" + link("/if")), `invalid template: 'if="x"' and '/if' are in the same text:p`},
		{"consumed directive", para(link(`for="x in xs"`)+userField("x")) + para(link("/for")),
			`invalid template: instruction 'x' is inside the text:p holding 'for="x in xs"'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directives, err := Scan(parseContent(t, tt.body))
			require.NoError(t, err)
			_, err = BalanceDirectives(directives)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.True(t, IsTemplateErrorKind(err, ErrStructure))
		})
	}
}

func TestBuildTemplateSource(t *testing.T) {
	body := para(link(`for="r in rows"`)) + para("Name: "+userField("r")) + para(link("/for"))
	doc := parseContent(t, body)
	directives, err := Scan(doc)
	require.NoError(t, err)
	blocks, err := BalanceDirectives(directives)
	require.NoError(t, err)

	src, err := BuildTemplateSource(doc, directives, blocks)
	require.NoError(t, err)
	assert.Contains(t, src.String(),
		`<office:text>{{for r in rows}}<text:p text:style-name="P1">Name: {{r}}</text:p>{{/for}}</office:text>`)
	assert.Len(t, src.Markers(), 3)
	assert.NotContains(t, src.Literal(), "py3o")

	var types []TokenType
	for _, tok := range src.Tokens() {
		if tok.Type != TokenText {
			types = append(types, tok.Type)
		}
	}
	assert.Equal(t, []TokenType{TokenFor, TokenVariable, TokenEnd}, types)
}

func TestBuildTemplateSourceImageFrame(t *testing.T) {
	doc := parseContent(t, para(imageFrame("py3o.image(pic)", "2cm", "1cm")))
	directives, err := Scan(doc)
	require.NoError(t, err)

	src, err := BuildTemplateSource(doc, directives, nil)
	require.NoError(t, err)
	assert.Contains(t, src.String(), `<draw:frame draw:name="{{image pic}}" svg:width="2cm" svg:height="1cm">`)
	require.Len(t, src.Markers(), 1)
	assert.Equal(t, ContextAttribute, src.Markers()[0].Context)
	assert.Equal(t, ImageBind, src.Markers()[0].Kind())
}

func TestBuildTemplateSourceTypedCells(t *testing.T) {
	cell := func(inner string) string {
		return `<table:table-cell table:style-name="A1">` + inner + `</table:table-cell>`
	}
	body := `<table:table><table:table-row>` +
		cell(para(userField("amount"))) +
		cell(para(`<text:span text:style-name="T1">`+userField("price")+`</text:span>`)) +
		cell(para("Total "+userField("total"))) +
		cell(para(userField("a"))+para(userField("b"))) +
		`</table:table-row></table:table>`
	doc := parseContent(t, body)
	directives, err := Scan(doc)
	require.NoError(t, err)

	src, err := BuildTemplateSource(doc, directives, nil)
	require.NoError(t, err)

	var contexts []OutputContext
	for _, m := range src.Markers() {
		contexts = append(contexts, m.Context)
	}
	assert.Equal(t, []OutputContext{ContextCell, ContextCell, ContextText, ContextText, ContextText}, contexts)
	assert.Equal(t, 2, strings.Count(src.Literal(), typedCellAttr))
	assert.Contains(t, src.String(), `<table:table-cell table:style-name="A1" `+typedCellAttr+`=""><text:p text:style-name="P1">{{amount}}</text:p>`)
}
