package stencil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// stringCell writes a cell the way an office suite saves typed text.
func stringCell(inner string) string {
	return `<table:table-cell office:value-type="string" calcext:value-type="string">` + para(inner) + `</table:table-cell>`
}

func tableRow(cells ...string) string {
	return `<table:table-row>` + strings.Join(cells, "") + `</table:table-row>`
}

func renderedCells(t *testing.T, content string) []*xml.Node {
	t.Helper()
	doc, err := xml.ParseString(content)
	require.NoError(t, err)
	return doc.Root().FindAll(xml.NSTable, "table-cell")
}

func TestRenderSpreadsheetVariableTypes(t *testing.T) {
	body := `<table:table table:name="Sheet1">` +
		tableRow(stringCell(link(`for="item in items"`)), stringCell("")) +
		tableRow(stringCell(userField("item.val1")), stringCell(userField("item.val2"))) +
		tableRow(stringCell(link("/for")), stringCell("")) +
		`</table:table>`
	tpl := newODTBuilder(body).spreadsheet().bytes()

	content, out, err := renderODT(tpl, TemplateData{
		"items": []map[string]interface{}{
			{"val1": 10, "val2": "toto"},
			{"val1": 50.12, "val2": "titi"},
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, content, typedCellAttr)

	mimetype, err := readPackagePart(out, mimetypePart)
	require.NoError(t, err)
	assert.Equal(t, odsMediaType, mimetype)

	cells := renderedCells(t, content)
	require.Len(t, cells, 4)

	tests := []struct {
		cell      *xml.Node
		valueType string
		value     string
		text      string
	}{
		{cells[0], "float", "10", "10"},
		{cells[1], "string", "", "toto"},
		{cells[2], "float", "50.12", "50.12"},
		{cells[3], "string", "", "titi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valueType, tt.cell.AttrValue(xml.NSOffice, "value-type"), tt.text)
		assert.Equal(t, tt.valueType, tt.cell.AttrValue(xml.NSCalcExt, "value-type"), tt.text)
		assert.Equal(t, tt.value, tt.cell.AttrValue(xml.NSOffice, "value"), tt.text)
		assert.Equal(t, tt.text, tt.cell.Text())
	}
}

func TestRenderCellValueStyles(t *testing.T) {
	body := `<table:table table:name="Values">` +
		tableRow(
			stringCell(userField(`odf_value(label, 40000, "date")`)),
			stringCell(userField("share")),
			stringCell("Total: "+userField("total")),
			stringCell(userField("flag")),
		) +
		`</table:table>`

	content, _, err := renderODT(createSimpleODTBytes(body), TemplateData{
		"label": "2009-07-06",
		"share": CellValue{Text: "50 %", Value: 0.5, Type: "percentage"},
		"total": 12.5,
		"flag":  true,
	})
	require.NoError(t, err)
	assert.NotContains(t, content, typedCellAttr)

	cells := renderedCells(t, content)
	require.Len(t, cells, 4)

	assert.Equal(t, "date", cells[0].AttrValue(xml.NSOffice, "value-type"))
	assert.Equal(t, "40000", cells[0].AttrValue(xml.NSOffice, "date-value"))
	assert.Equal(t, "2009-07-06", cells[0].Text())

	assert.Equal(t, "percentage", cells[1].AttrValue(xml.NSOffice, "value-type"))
	assert.Equal(t, "0.5", cells[1].AttrValue(xml.NSOffice, "value"))
	assert.Equal(t, "50 %", cells[1].Text())

	// text around the substitution keeps the cell a string
	assert.Equal(t, "string", cells[2].AttrValue(xml.NSOffice, "value-type"))
	_, ok := cells[2].Attr(xml.NSOffice, "value")
	assert.False(t, ok)
	assert.Equal(t, "Total: 12.5", cells[2].Text())

	assert.Equal(t, "string", cells[3].AttrValue(xml.NSOffice, "value-type"))
	assert.Equal(t, "true", cells[3].Text())
}

func TestCellValueType(t *testing.T) {
	noon := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value interface{}
		typ   string
		want  string
		ok    bool
	}{
		{"int", 10, "float", "10", true},
		{"float", 50.12, "float", "50.12", true},
		{"uint8", uint8(7), "float", "7", true},
		{"string", "toto", "", "", false},
		{"bool", true, "", "", false},
		{"nil", nil, "", "", false},
		{"explicit date", CellValue{Text: "x", Value: 40000, Type: "date"}, "date", "40000", true},
		{"time.Time date", CellValue{Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, "date", "2024-03-01", true},
		{"datetime", CellValue{Value: noon, Type: "date"}, "date", "2024-03-01T12:30:00", true},
		{"duration", CellValue{Value: 90 * time.Minute}, "time", "PT01H30M00S", true},
		{"currency", &CellValue{Value: "19.99", Type: "Currency"}, "currency", "19.99", true},
		{"boolean", CellValue{Value: "1", Type: "boolean"}, "boolean", "true", true},
		{"string type", CellValue{Value: 3, Type: "string"}, "string", "3", true},
		{"no value", CellValue{Text: "x", Type: "float"}, "", "", false},
		{"unknown type", CellValue{Value: 1, Type: "complex"}, "", "", false},
		{"nil pointer", (*CellValue)(nil), "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, value, ok := cellValueType(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestODFValueFunction(t *testing.T) {
	fn, ok := GetDefaultFunctionRegistry().GetFunction("odf_value")
	require.True(t, ok)

	got, err := fn.Call("6 July", 40000, "DATE")
	require.NoError(t, err)
	assert.Equal(t, CellValue{Text: "6 July", Value: 40000, Type: "date"}, got)
	assert.Equal(t, "6 July", FormatValue(got))

	_, err = fn.Call("x", 1, "complex")
	assert.ErrorContains(t, err, `unknown value type "complex"`)
}
