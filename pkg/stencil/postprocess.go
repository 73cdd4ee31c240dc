package stencil

import (
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// typeCells sets the value type of every flagged cell in doc from the value
// its substitution produced and drops the flag. Values arrive in output order.
func (s *renderSession) typeCells(doc *xml.Document) {
	values := s.cells
	s.cells = nil
	typed := 0
	for _, cell := range doc.Node().FindAll(xml.NSTable, "table-cell") {
		if _, ok := cell.Attr("", typedCellAttr); !ok {
			continue
		}
		cell.RemoveAttr("", typedCellAttr)
		if len(values) == 0 {
			continue
		}
		v := values[0]
		values = values[1:]
		if typ, value, ok := cellValueType(v); ok {
			setCellValue(cell, typ, value)
			typed++
		}
	}
	if typed > 0 {
		GetLogger().Debug().Int("cells", typed).Msg("cell value types set")
	}
}

// injectImages stores the data of every bound frame in doc as a new picture
// part and points the frame's draw:image at it.
func (s *renderSession) injectImages(doc *xml.Document) error {
	if len(s.pending) == 0 {
		return nil
	}
	for _, frame := range doc.Node().FindAll(xml.NSDraw, "frame") {
		name := frame.AttrValue(xml.NSDraw, "name")
		img, ok := s.pending[name]
		if !ok {
			continue
		}
		delete(s.pending, name)
		if err := s.injectImage(frame, img); err != nil {
			return err
		}
	}
	return nil
}

func (s *renderSession) injectImage(frame *xml.Node, img *boundImage) error {
	info, err := DecodeImageInfo(img.data)
	if err != nil {
		return &TemplateError{
			Kind:    ErrData,
			Message: "image '" + img.binding.Name + "': " + err.Error(),
			Cause:   err,
		}
	}

	path, err := s.storeImage(img, info)
	if err != nil {
		return err
	}

	image := frame.FindFirst(xml.NSDraw, "image")
	if image == nil {
		prefix, ok := frame.LookupPrefix(xml.NSDraw)
		if !ok {
			prefix = "draw"
		}
		image = xml.NewElement(prefix + ":image")
		frame.AppendChild(image)
		image.SetAttr(xml.NSXLink, "type", "simple")
		image.SetAttr(xml.NSXLink, "show", "embed")
		image.SetAttr(xml.NSXLink, "actuate", "onLoad")
	}
	image.SetAttr(xml.NSXLink, "href", path)
	// inline data would take precedence over the link
	for _, bin := range image.FindAll(xml.NSOffice, "binary-data") {
		bin.Remove()
	}

	if img.binding.KeepRatio {
		s.fitFrame(frame, info)
	}
	return nil
}

// storeImage adds a new picture part for every bound frame, so each bind
// site of a static image gets its own path.
func (s *renderSession) storeImage(img *boundImage, info *ImageInfo) (string, error) {
	id, err := s.newName()
	if err != nil {
		return "", err
	}
	path := picturesDir + id + "." + info.Extension
	s.pkg.AddPart(path, img.data, info.MediaType)
	GetLogger().Debug().Str("image", img.binding.Name).Str("path", path).
		Int("width", info.Width).Int("height", info.Height).Msg("image injected")
	return path, nil
}

// fitFrame shrinks the frame to the image aspect ratio. Frames without a
// usable size are left as designed.
func (s *renderSession) fitFrame(frame *xml.Node, info *ImageInfo) {
	w, okW := frame.Attr(xml.NSSVG, "width")
	h, okH := frame.Attr(xml.NSSVG, "height")
	if !okW || !okH {
		return
	}
	width, err := render.ParseLength(w)
	if err != nil {
		GetLogger().Debug().Err(err).Msg("frame width not resized")
		return
	}
	height, err := render.ParseLength(h)
	if err != nil {
		GetLogger().Debug().Err(err).Msg("frame height not resized")
		return
	}
	fw, fh, err := render.FitFrame(width, height, info.Width, info.Height)
	if err != nil {
		GetLogger().Debug().Err(err).Msg("frame not resized")
		return
	}
	frame.SetAttr(xml.NSSVG, "width", fw.String())
	frame.SetAttr(xml.NSSVG, "height", fh.String())
}
