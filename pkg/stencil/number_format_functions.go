package stencil

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// printf-style specifier with an optional grouping flag
var formatSpecRegex = regexp.MustCompile(`%([-#+ 0,]*)(\d+)?(\.\d+)?([a-zA-Z%])`)

// languages writing the currency symbol after the amount
var symbolAfter = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "pt": true, "nl": true,
	"pl": true, "cs": true, "sk": true, "sv": true, "da": true, "fi": true,
	"nb": true, "hu": true, "ro": true, "ru": true,
}

func parseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		return language.English, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag, nil
}

// formatPattern formats args with a printf pattern. Numeric verbs coerce
// their argument; the ',' flag groups digits the way the printer's locale does.
func formatPattern(p *message.Printer, pattern string, args []interface{}) (string, error) {
	var (
		sb   strings.Builder
		next int
		last int
	)
	for _, m := range formatSpecRegex.FindAllStringSubmatchIndex(pattern, -1) {
		sb.WriteString(pattern[last:m[0]])
		last = m[1]
		flags, verb := pattern[m[2]:m[3]], pattern[m[8]:m[9]]
		if verb == "%" {
			sb.WriteByte('%')
			continue
		}
		if next >= len(args) {
			return "", fmt.Errorf("format() expects more values for pattern %q", pattern)
		}
		arg := args[next]
		next++

		grouped := strings.Contains(flags, ",")
		spec := "%" + strings.ReplaceAll(flags, ",", "") + pattern[m[3]:m[1]]
		var value interface{}
		switch verb {
		case "d":
			n, err := cast.ToInt64E(arg)
			if err != nil {
				return "", &DataFormatError{Value: FormatValue(arg), Format: spec, Cause: err}
			}
			value = n
		case "f", "e", "g", "E", "G":
			f, err := cast.ToFloat64E(arg)
			if err != nil {
				return "", &DataFormatError{Value: FormatValue(arg), Format: spec, Cause: err}
			}
			value = f
		case "s":
			value = FormatValue(arg)
		default:
			value = arg
		}
		if grouped {
			sb.WriteString(p.Sprintf(spec, value))
		} else {
			sb.WriteString(fmt.Sprintf(spec, value))
		}
	}
	sb.WriteString(pattern[last:])
	return sb.String(), nil
}

// formatCurrency renders amount in the currency code for locale, e.g.
// "€1,234.50" for en or "1.234,50\u00a0€" for de. Trailing symbols are
// joined with a no-break space.
func formatCurrency(amount interface{}, code, locale string) (string, error) {
	v, err := cast.ToFloat64E(amount)
	if err != nil {
		return "", &DataFormatError{Value: FormatValue(amount), Format: code, Cause: err}
	}
	tag, err := parseLocale(locale)
	if err != nil {
		return "", err
	}
	var unit currency.Unit
	if code == "" {
		u, conf := currency.FromTag(tag)
		if conf == language.No {
			return "", fmt.Errorf("no currency for locale %q", locale)
		}
		unit = u
	} else {
		u, err := currency.ParseISO(code)
		if err != nil {
			return "", &DataFormatError{Value: code, Format: "ISO 4217", Cause: err}
		}
		unit = u
	}

	p := message.NewPrinter(tag)
	scale, _ := currency.Standard.Rounding(unit)
	digits := p.Sprint(number.Decimal(math.Abs(v), number.Scale(scale)))
	symbol := p.Sprint(currency.Symbol(unit))

	base, _ := tag.Base()
	var out string
	if symbolAfter[base.String()] {
		out = digits + "\u00a0" + symbol
	} else {
		out = symbol + digits
	}
	if v < 0 {
		out = "-" + out
	}
	return out, nil
}

func formatNumber(value interface{}, decimals int, locale string) (string, error) {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return "", &DataFormatError{Value: FormatValue(value), Cause: err}
	}
	tag, err := parseLocale(locale)
	if err != nil {
		return "", err
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(v, number.Scale(decimals))), nil
}

func optionalString(args []interface{}, i int) string {
	if i < len(args) && args[i] != nil {
		return cast.ToString(args[i])
	}
	return ""
}

func registerNumberFormatFunctions(registry *DefaultFunctionRegistry) {
	registry.RegisterFunction(NewSimpleFunction("format", 1, -1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return formatPattern(message.NewPrinter(language.English), FormatValue(args[0]), args[1:])
	}))

	registry.RegisterFunction(NewSimpleFunction("formatWithLocale", 2, -1, func(args ...interface{}) (interface{}, error) {
		if args[1] == nil {
			return nil, nil
		}
		tag, err := parseLocale(cast.ToString(args[0]))
		if err != nil {
			return nil, err
		}
		return formatPattern(message.NewPrinter(tag), FormatValue(args[1]), args[2:])
	}))

	// format_currency(amount, code[, locale])
	registry.RegisterFunction(NewSimpleFunction("format_currency", 2, 3, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return formatCurrency(args[0], cast.ToString(args[1]), optionalString(args, 2))
	}))

	// currency(amount[, locale]) uses the currency of the locale's region
	registry.RegisterFunction(NewSimpleFunction("currency", 1, 2, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		locale := optionalString(args, 1)
		if locale == "" {
			locale = "en-US"
		}
		return formatCurrency(args[0], "", locale)
	}))

	registry.RegisterFunction(NewSimpleFunction("percent", 1, 2, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		v, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, &DataFormatError{Value: FormatValue(args[0]), Cause: err}
		}
		tag, err := parseLocale(optionalString(args, 1))
		if err != nil {
			return nil, err
		}
		return message.NewPrinter(tag).Sprint(number.Percent(v, number.MaxFractionDigits(2))), nil
	}))

	// format_number(value[, decimals[, locale]])
	registry.RegisterFunction(NewSimpleFunction("format_number", 1, 3, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		decimals := 2
		if len(args) > 1 && args[1] != nil {
			d, err := cast.ToIntE(args[1])
			if err != nil {
				return nil, fmt.Errorf("format_number() decimals must be an integer")
			}
			decimals = d
		}
		return formatNumber(args[0], decimals, optionalString(args, 2))
	}))
}
