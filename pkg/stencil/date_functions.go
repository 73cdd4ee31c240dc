package stencil

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	defaultDateFormat     = "%Y-%m-%d"
	defaultDateTimeFormat = "%Y-%m-%d %H:%M:%S"
)

// strftime directives and their Go layout equivalents
var strftimeLayouts = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'j': "002",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'f': "000000",
	'p': "PM",
	'B': "January",
	'b': "Jan",
	'A': "Monday",
	'a': "Mon",
	'z': "-0700",
	'Z': "MST",
}

// strftimeLayout converts a strftime pattern to a Go layout for parsing.
func strftimeLayout(pattern string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(pattern) {
			return "", fmt.Errorf("dangling %% in format %q", pattern)
		}
		if pattern[i] == '%' {
			sb.WriteByte('%')
			continue
		}
		layout, ok := strftimeLayouts[pattern[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in format %q", pattern[i], pattern)
		}
		sb.WriteString(layout)
	}
	return sb.String(), nil
}

// strftime formats t directive by directive so literal text never collides
// with Go layout tokens. Month and weekday names follow locale when known.
func strftime(t time.Time, pattern, locale string) (string, error) {
	names := getDateTranslations(localeLanguage(locale))
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(pattern) {
			return "", fmt.Errorf("dangling %% in format %q", pattern)
		}
		d := pattern[i]
		if d == '%' {
			sb.WriteByte('%')
			continue
		}
		layout, ok := strftimeLayouts[d]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c in format %q", d, pattern)
		}
		out := t.Format(layout)
		if names != nil {
			out = names.translate(d, out)
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

// Java SimpleDateFormat letter runs and their Go layout equivalents
var javaLayouts = map[string]string{
	"yyyy": "2006", "yy": "06",
	"MMMM": "January", "MMM": "Jan", "MM": "01", "M": "1",
	"dd": "02", "d": "2",
	"HH": "15", "H": "15",
	"hh": "03", "h": "3",
	"mm": "04", "m": "4",
	"ss": "05", "s": "5",
	"a": "PM", "EEEE": "Monday", "EEE": "Mon", "E": "Mon",
	"SSS": "000",
}

// translateDateFormat converts a Java SimpleDateFormat pattern to a Go
// layout. Unknown letter runs are copied unchanged.
func translateDateFormat(javaFormat string) string {
	var sb strings.Builder
	for i := 0; i < len(javaFormat); {
		j := i
		for j < len(javaFormat) && javaFormat[j] == javaFormat[i] {
			j++
		}
		run := javaFormat[i:j]
		if layout, ok := javaLayouts[run]; ok {
			sb.WriteString(layout)
		} else {
			sb.WriteString(run)
		}
		i = j
	}
	return sb.String()
}

// parseDate turns a value into a time. Strings are parsed with the strftime
// pattern source.
func parseDate(value interface{}, source string) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, &DataFormatError{Value: "None", Format: source}
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, &DataFormatError{Value: "None", Format: source}
		}
		return *v, nil
	case string:
		layout, err := strftimeLayout(source)
		if err != nil {
			return time.Time{}, &DataFormatError{Value: v, Format: source, Cause: err}
		}
		t, err := time.Parse(layout, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, &DataFormatError{Value: v, Format: source, Cause: err}
		}
		return t, nil
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}, &DataFormatError{Value: FormatValue(value), Format: source, Cause: err}
	}
	return t, nil
}

func localeLanguage(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		return strings.ToLower(locale[:i])
	}
	return strings.ToLower(locale)
}

type dateTranslations struct {
	months        map[string]string
	monthsShort   map[string]string
	weekdays      map[string]string
	weekdaysShort map[string]string
}

func (d *dateTranslations) translate(directive byte, s string) string {
	var table map[string]string
	switch directive {
	case 'B':
		table = d.months
	case 'b':
		table = d.monthsShort
	case 'A':
		table = d.weekdays
	case 'a':
		table = d.weekdaysShort
	default:
		return s
	}
	if tr, ok := table[s]; ok {
		return tr
	}
	return s
}

func getDateTranslations(lang string) *dateTranslations {
	switch lang {
	case "de":
		return &dateTranslations{
			months: map[string]string{
				"January": "Januar", "February": "Februar", "March": "März",
				"April": "April", "May": "Mai", "June": "Juni",
				"July": "Juli", "August": "August", "September": "September",
				"October": "Oktober", "November": "November", "December": "Dezember",
			},
			monthsShort: map[string]string{
				"Mar": "Mär", "May": "Mai", "Oct": "Okt", "Dec": "Dez",
			},
			weekdays: map[string]string{
				"Monday": "Montag", "Tuesday": "Dienstag", "Wednesday": "Mittwoch",
				"Thursday": "Donnerstag", "Friday": "Freitag",
				"Saturday": "Samstag", "Sunday": "Sonntag",
			},
			weekdaysShort: map[string]string{
				"Mon": "Mo", "Tue": "Di", "Wed": "Mi",
				"Thu": "Do", "Fri": "Fr", "Sat": "Sa", "Sun": "So",
			},
		}
	case "fr":
		return &dateTranslations{
			months: map[string]string{
				"January": "janvier", "February": "février", "March": "mars",
				"April": "avril", "May": "mai", "June": "juin",
				"July": "juillet", "August": "août", "September": "septembre",
				"October": "octobre", "November": "novembre", "December": "décembre",
			},
			monthsShort: map[string]string{
				"Jan": "janv.", "Feb": "févr.", "Mar": "mars",
				"Apr": "avr.", "May": "mai", "Jun": "juin",
				"Jul": "juil.", "Aug": "août", "Sep": "sept.",
				"Oct": "oct.", "Nov": "nov.", "Dec": "déc.",
			},
			weekdays: map[string]string{
				"Monday": "lundi", "Tuesday": "mardi", "Wednesday": "mercredi",
				"Thursday": "jeudi", "Friday": "vendredi",
				"Saturday": "samedi", "Sunday": "dimanche",
			},
			weekdaysShort: map[string]string{
				"Mon": "lun.", "Tue": "mar.", "Wed": "mer.",
				"Thu": "jeu.", "Fri": "ven.", "Sat": "sam.", "Sun": "dim.",
			},
		}
	case "es":
		return &dateTranslations{
			months: map[string]string{
				"January": "enero", "February": "febrero", "March": "marzo",
				"April": "abril", "May": "mayo", "June": "junio",
				"July": "julio", "August": "agosto", "September": "septiembre",
				"October": "octubre", "November": "noviembre", "December": "diciembre",
			},
			weekdays: map[string]string{
				"Monday": "lunes", "Tuesday": "martes", "Wednesday": "miércoles",
				"Thursday": "jueves", "Friday": "viernes",
				"Saturday": "sábado", "Sunday": "domingo",
			},
		}
	}
	return nil
}

// formatDateArgs implements format_date and format_datetime:
// (value[, target[, source[, locale]]]).
func formatDateArgs(args []interface{}, defaultTarget, defaultSource string) (interface{}, error) {
	target, source, locale := defaultTarget, defaultSource, ""
	if len(args) > 1 && args[1] != nil {
		target = cast.ToString(args[1])
	}
	if len(args) > 2 && args[2] != nil {
		source = cast.ToString(args[2])
	}
	if len(args) > 3 && args[3] != nil {
		locale = cast.ToString(args[3])
	}
	t, err := parseDate(args[0], source)
	if err != nil {
		return nil, err
	}
	out, err := strftime(t, target, locale)
	if err != nil {
		return nil, &DataFormatError{Value: FormatValue(args[0]), Format: target, Cause: err}
	}
	return out, nil
}

func registerDateFunctions(registry *DefaultFunctionRegistry) {
	registry.RegisterFunction(NewSimpleFunction("format_date", 1, 4, func(args ...interface{}) (interface{}, error) {
		return formatDateArgs(args, defaultDateFormat, defaultDateFormat)
	}))
	registry.RegisterFunction(NewSimpleFunction("format_datetime", 1, 4, func(args ...interface{}) (interface{}, error) {
		return formatDateArgs(args, defaultDateTimeFormat, defaultDateTimeFormat)
	}))

	// date(pattern, value) or date(locale, pattern, value) with a Java style
	// or Go layout pattern
	registry.RegisterFunction(NewSimpleFunction("date", 2, 3, func(args ...interface{}) (interface{}, error) {
		locale, pattern, value := "", args[0], args[1]
		if len(args) == 3 {
			locale, pattern, value = cast.ToString(args[0]), args[1], args[2]
		}
		if pattern == nil || value == nil || cast.ToString(pattern) == "" {
			return nil, nil
		}
		t, err := parseDate(value, defaultDateFormat)
		if err != nil {
			if alt, altErr := parseDate(value, defaultDateTimeFormat); altErr == nil {
				t, err = alt, nil
			}
		}
		if err != nil {
			return nil, err
		}
		p := cast.ToString(pattern)
		out := t.Format(p)
		if out == p {
			out = t.Format(translateDateFormat(p))
		}
		if names := getDateTranslations(localeLanguage(locale)); names != nil {
			for _, pair := range []struct {
				layout    string
				directive byte
			}{{"January", 'B'}, {"Monday", 'A'}} {
				name := t.Format(pair.layout)
				out = strings.ReplaceAll(out, name, names.translate(pair.directive, name))
			}
		}
		return out, nil
	}))

	registry.RegisterFunction(NewSimpleFunction("now", 0, 0, func(args ...interface{}) (interface{}, error) {
		return time.Now(), nil
	}))
}
