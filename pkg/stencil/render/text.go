package render

import (
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// ParagraphText converts plain text into escaped paragraph content. Newlines
// become text:line-break, tabs become text:tab and runs of spaces keep their
// width through text:s, since ODF consumers collapse plain whitespace.
func ParagraphText(s string) string {
	if !strings.ContainsAny(s, "\n\r\t") && !strings.Contains(s, "  ") {
		return xml.EscapeText(s)
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	var sb strings.Builder
	spaces := 0
	flush := func() {
		switch spaces {
		case 0:
		case 1:
			sb.WriteByte(' ')
		case 2:
			sb.WriteString(` <text:s/>`)
		default:
			sb.WriteString(` <text:s text:c="` + strconv.Itoa(spaces-1) + `"/>`)
		}
		spaces = 0
	}

	for _, r := range s {
		if r == ' ' {
			spaces++
			continue
		}
		flush()
		switch r {
		case '\n', '\r':
			sb.WriteString("<text:line-break/>")
		case '\t':
			sb.WriteString("<text:tab/>")
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		default:
			if xml.IsValidChar(r) {
				sb.WriteRune(r)
			}
		}
	}
	flush()
	return sb.String()
}
