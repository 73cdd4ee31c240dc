package stencil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// CellValue is shown as Text in a table cell while the cell stores Value
// with the given ODF value type (float, percentage, currency, date, time,
// boolean or string). An empty Type is inferred from Value.
type CellValue struct {
	Text  string
	Value interface{}
	Type  string
}

func (v CellValue) String() string { return v.Text }

// value type -> office attribute holding the typed value
var cellValueAttrs = map[string]string{
	"float":      "value",
	"percentage": "value",
	"currency":   "value",
	"date":       "date-value",
	"time":       "time-value",
	"boolean":    "boolean-value",
	"string":     "string-value",
}

func registerCellFunctions(registry *DefaultFunctionRegistry) {
	// odf_value(text, value[, type])
	registry.RegisterFunction(NewSimpleFunction("odf_value", 2, 3, func(args ...interface{}) (interface{}, error) {
		typ := strings.ToLower(optionalString(args, 2))
		if _, ok := cellValueAttrs[typ]; typ != "" && !ok {
			return nil, fmt.Errorf("odf_value() unknown value type %q", typ)
		}
		return CellValue{Text: FormatValue(args[0]), Value: args[1], Type: typ}, nil
	}))
}

// cellValueType returns the value type and the typed value a cell filled with
// v should carry. ok is false for values that leave the cell as it is.
func cellValueType(v interface{}) (typ, value string, ok bool) {
	switch cv := v.(type) {
	case CellValue:
		return typedCellValue(cv)
	case *CellValue:
		if cv == nil {
			return "", "", false
		}
		return typedCellValue(*cv)
	case bool, string, nil:
		return "", "", false
	}
	if f, isNum := toFloat64(v); isNum {
		return "float", formatCellNumber(v, f), true
	}
	return "", "", false
}

func typedCellValue(cv CellValue) (string, string, bool) {
	typ := strings.ToLower(cv.Type)
	if typ == "" {
		typ = inferCellType(cv.Value)
	}
	if _, known := cellValueAttrs[typ]; !known || cv.Value == nil {
		return "", "", false
	}

	switch typ {
	case "float", "percentage", "currency":
		if f, isNum := toFloat64(cv.Value); isNum {
			return typ, formatCellNumber(cv.Value, f), true
		}
		f, err := cast.ToFloat64E(cv.Value)
		if err != nil {
			return "", "", false
		}
		return typ, strconv.FormatFloat(f, 'f', -1, 64), true
	case "date":
		if t, isTime := cv.Value.(time.Time); isTime {
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
				return typ, t.Format("2006-01-02"), true
			}
			return typ, t.Format("2006-01-02T15:04:05"), true
		}
	case "time":
		switch t := cv.Value.(type) {
		case time.Duration:
			return typ, odfDuration(t), true
		case time.Time:
			return typ, t.Format("PT15H04M05S"), true
		}
	case "boolean":
		b, err := cast.ToBoolE(cv.Value)
		if err != nil {
			return "", "", false
		}
		return typ, strconv.FormatBool(b), true
	}
	s, err := cast.ToStringE(cv.Value)
	if err != nil {
		return "", "", false
	}
	return typ, s, true
}

func inferCellType(v interface{}) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case time.Time:
		return "date"
	case time.Duration:
		return "time"
	case string:
		return "string"
	}
	if _, isNum := toFloat64(v); isNum {
		return "float"
	}
	return ""
}

func formatCellNumber(v interface{}, f float64) string {
	if isInteger(v) {
		return FormatValue(v)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// odfDuration writes d as an ISO 8601 duration, e.g. PT01H30M00S.
func odfDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign, d = "-", -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%sPT%02dH%02dM%02dS", sign, h, m, d/time.Second)
}

// setCellValue stores the typed value on cell, replacing any value the
// template cell carried.
func setCellValue(cell *xml.Node, typ, value string) {
	for _, attr := range []string{"value", "date-value", "time-value", "boolean-value", "string-value"} {
		cell.RemoveAttr(xml.NSOffice, attr)
	}
	if typ != "currency" {
		cell.RemoveAttr(xml.NSOffice, "currency")
	}
	cell.SetAttr(xml.NSOffice, "value-type", typ)
	cell.SetAttr(xml.NSOffice, cellValueAttrs[typ], value)
	if _, ok := cell.Attr(xml.NSCalcExt, "value-type"); ok {
		cell.SetAttr(xml.NSCalcExt, "value-type", typ)
	}
}
