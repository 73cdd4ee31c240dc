// Package stencil renders OpenDocument (ODT, ODS) templates with data.
//
// Templates are designed in LibreOffice or OpenOffice. Instead of a custom
// markup language, instructions are carried by objects the office suite
// already knows, so the layout stays editable and the template stays a valid
// document.
//
// # Quick Start
//
//	tmpl, err := stencil.Open("invoice.odt", "invoice-42.odt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tmpl.Close()
//
//	err = tmpl.Render(stencil.TemplateData{
//	    "customer": map[string]interface{}{"name": "ACME"},
//	    "items": []map[string]interface{}{
//	        {"label": "Widget", "price": 19.99},
//	        {"label": "Gadget", "price": 29.99},
//	    },
//	})
//
// # Directives
//
// A directive is written in one of these places:
//
//	hyperlink          target py3o://<instruction>, shown text equal to the target
//	text input field   description py3o://<instruction>
//	user field         name py3o.<expression>
//	frame              name py3o.image(<expression>[, keep_ratio=False])
//	                   or py3o.staticimage.<name>
//
// Instructions:
//
//	for="item in items"       repeat up to the matching /for
//	for="i, item in items"    indexed loop
//	/for
//	if="total > 0"            keep up to the matching /if when true
//	/if
//	function="name(args)"     insert the result of a helper
//	customer.name             insert the value of an expression
//
// Opening and closing directives must sit in different paragraphs, rows,
// cells or list items. Everything between the element holding the opening
// directive and the element holding the closing one is repeated or kept as a
// whole, so a loop whose directives sit in two table rows repeats the rows in
// between.
//
// # Functions
//
// Helpers: format_date, format_datetime, format_currency, format_number,
// format, formatWithLocale, currency, percent, date, lowercase, uppercase,
// titlecase, trim, join, joinAnd, replace, length, round, floor, ceil, sum,
// contains, range, switch, empty, coalesce, list, map, str, integer, decimal,
// data and odf_value. Go funcs found in the data context are callable too.
//
// # Table cells
//
// A substitution that is the only content of a table cell also sets the
// cell's value type: numbers become float cells, and a CellValue (or the
// result of odf_value) stores its own typed value behind the displayed text.
//
// # Errors
//
// A render fails with a *TemplateError whose Kind tells grammar, structure,
// undefined name and bad data problems apart. IO problems are reported as
// *DocumentError.
//
// # Configuration
//
// Defaults come from STENCIL_* environment variables or a config file (see
// LoadConfigFile) and can be overridden per Engine or per Template with
// options.
package stencil
