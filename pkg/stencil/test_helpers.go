// test_helpers.go contains functions that are exposed only for testing purposes.
// These should not be used in production code.

package stencil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

const (
	odtMediaType = "application/vnd.oasis.opendocument.text"
	odsMediaType = "application/vnd.oasis.opendocument.spreadsheet"
)

const odfNamespaceDecls = `xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
	`xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0" ` +
	`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" ` +
	`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" ` +
	`xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0" ` +
	`xmlns:fo="urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0" ` +
	`xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0" ` +
	`xmlns:xlink="http://www.w3.org/1999/xlink" ` +
	`xmlns:calcext="urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0" office:version="1.2"`

type odtFile struct {
	name      string
	mediaType string
	data      []byte
}

// odtBuilder assembles a minimal text document in memory.
type odtBuilder struct {
	mediaType string
	bodyTag   string
	body      string
	styles    string
	files     []odtFile
}

func newODTBuilder(body string) *odtBuilder {
	return &odtBuilder{mediaType: odtMediaType, bodyTag: "office:text", body: body}
}

// spreadsheet turns the document into a spreadsheet whose office:spreadsheet
// holds body.
func (b *odtBuilder) spreadsheet() *odtBuilder {
	b.mediaType = odsMediaType
	b.bodyTag = "office:spreadsheet"
	return b
}

// withMasterStyles sets the office:master-styles content of styles.xml.
func (b *odtBuilder) withMasterStyles(s string) *odtBuilder {
	b.styles = s
	return b
}

// withFile adds a part and its manifest entry.
func (b *odtBuilder) withFile(name, mediaType string, data []byte) *odtBuilder {
	b.files = append(b.files, odtFile{name: name, mediaType: mediaType, data: data})
	return b
}

func (b *odtBuilder) contentXML() string {
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<office:document-content ` + odfNamespaceDecls + `>` +
		`<office:body><` + b.bodyTag + `>` + b.body + `</` + b.bodyTag + `></office:body>` +
		`</office:document-content>`
}

func (b *odtBuilder) stylesXML() string {
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<office:document-styles ` + odfNamespaceDecls + `>` +
		`<office:master-styles>` + b.styles + `</office:master-styles>` +
		`</office:document-styles>`
}

func (b *odtBuilder) manifestXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">` + "\n")
	entry := func(path, mediaType string) {
		fmt.Fprintf(&sb, ` <manifest:file-entry manifest:full-path="%s" manifest:media-type="%s"/>`+"\n", path, mediaType)
	}
	entry("/", b.mediaType)
	entry(contentPart, "text/xml")
	entry(stylesPart, "text/xml")
	for _, f := range b.files {
		entry(f.name, f.mediaType)
	}
	sb.WriteString(`</manifest:manifest>`)
	return sb.String()
}

func (b *odtBuilder) bytes() []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, _ := zw.CreateHeader(&zip.FileHeader{Name: mimetypePart, Method: zip.Store})
	_, _ = w.Write([]byte(b.mediaType))

	write := func(name string, data []byte) {
		w, _ := zw.Create(name)
		_, _ = w.Write(data)
	}
	write(manifestPart, []byte(b.manifestXML()))
	write(contentPart, []byte(b.contentXML()))
	write(stylesPart, []byte(b.stylesXML()))
	for _, f := range b.files {
		write(f.name, f.data)
	}
	_ = zw.Close()
	return buf.Bytes()
}

// createSimpleODTBytes returns a text document whose office:text holds body.
func createSimpleODTBytes(body string) []byte {
	return newODTBuilder(body).bytes()
}

// readPackagePart returns one part of a rendered package.
func readPackagePart(data []byte, name string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		return string(raw), err
	}
	return "", fmt.Errorf("part %s not found", name)
}

// packagePartNames lists the parts of a package in archive order.
func packagePartNames(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// renderODT renders an in-memory template and returns its content.xml.
func renderODT(template []byte, data TemplateData, opts ...Option) (string, []byte, error) {
	tmpl, err := Load(bytes.NewReader(template), opts...)
	if err != nil {
		return "", nil, err
	}
	defer tmpl.Close()

	out, err := tmpl.RenderBytes(data)
	if err != nil {
		return "", nil, err
	}
	content, err := readPackagePart(out, contentPart)
	return content, out, err
}

// link writes a directive hyperlink the way office suites store it.
func link(payload string) string {
	href := payloadPrefix + strings.ReplaceAll(payload, " ", "%20")
	return `<text:a xlink:type="simple" xlink:href="` + xml.EscapeAttr(href) + `">` +
		xml.EscapeText(payloadPrefix+payload) + `</text:a>`
}

// userField writes a user field directive.
func userField(expr string) string {
	return `<text:user-field-get text:name="` + xml.EscapeAttr(userFieldPrefix+expr) + `">x</text:user-field-get>`
}

// inputField writes a text input field directive.
func inputField(payload string) string {
	return `<text:text-input text:description="` + xml.EscapeAttr(payloadPrefix+payload) + `">x</text:text-input>`
}

func para(inner string) string {
	return `<text:p text:style-name="P1">` + inner + `</text:p>`
}

// imageFrame writes an image placeholder frame of the given size.
func imageFrame(name, width, height string) string {
	return `<draw:frame draw:name="` + xml.EscapeAttr(name) + `" svg:width="` + width + `" svg:height="` + height + `">` +
		`<draw:image xlink:href="Pictures/placeholder.png" xlink:type="simple" xlink:show="embed" xlink:actuate="onLoad"/>` +
		`</draw:frame>`
}

// pngBytes encodes a blank w x h PNG.
func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.Black)
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
