package xml

// Namespace URIs used by OpenDocument parts.
const (
	NSOffice   = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	NSStyle    = "urn:oasis:names:tc:opendocument:xmlns:style:1.0"
	NSText     = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	NSTable    = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	NSDraw     = "urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
	NSFO       = "urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0"
	NSSVG      = "urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"
	NSManifest = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"
	NSCalcExt  = "urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0"
	NSXLink    = "http://www.w3.org/1999/xlink"
	NSXML      = "http://www.w3.org/XML/1998/namespace"
	NSXMLNS    = "http://www.w3.org/2000/xmlns/"
)

// DefaultPrefixes maps the conventional ODF prefixes to their namespace URIs.
// It is the fallback when a part does not declare a namespace a new element
// or attribute needs.
var DefaultPrefixes = map[string]string{
	"office":   NSOffice,
	"style":    NSStyle,
	"text":     NSText,
	"table":    NSTable,
	"draw":     NSDraw,
	"fo":       NSFO,
	"svg":      NSSVG,
	"manifest": NSManifest,
	"xlink":    NSXLink,
	"xml":      NSXML,
}

// conventionalPrefix returns the usual prefix for a namespace URI.
func conventionalPrefix(uri string) (string, bool) {
	for prefix, u := range DefaultPrefixes {
		if u == uri {
			return prefix, true
		}
	}
	return "", false
}
