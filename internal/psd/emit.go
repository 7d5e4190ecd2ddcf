package psd

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
)

// Group names, bottom to top.
const (
	GroupBackgroundColor = "Background Color"
	GroupBackgroundImage = "Background Image"
	GroupProduct         = "Product"
)

// ErrTooLarge is returned when the canvas or the serialized document exceeds
// what can be written. It is the same condition as compose.ErrTooLarge.
var ErrTooLarge = compose.ErrTooLarge

// EmitRequest carries one foreground and the layout it is placed with.
// Settings.Watermark is not part of the layered document.
type EmitRequest struct {
	Settings        compose.Settings
	Foreground      raster.Source
	BackgroundColor color.NRGBA
	BackgroundImage *raster.Source
}

// Emission is the layered document, its flattened preview and the encoded
// .psd file.
type Emission struct {
	Document *Document
	Preview  *image.NRGBA
	Data     []byte
}

// Build lays out the document without serializing it.
func Build(req EmitRequest) (*Document, error) {
	s := req.Settings
	s.Watermark = nil
	bgColor := req.BackgroundColor
	bgColor.A = 0xff
	composer, err := compose.NewComposer(s, raster.Solid{Color: bgColor}, nil)
	if err != nil {
		return nil, err
	}
	doc := &Document{Width: s.Width, Height: s.Height}
	doc.Groups = append(doc.Groups, Group{
		Name:      GroupBackgroundColor,
		Collapsed: true,
		Layers:    []Layer{{Name: raster.FormatColor(bgColor), Image: composer.Canvas()}},
	})

	if req.BackgroundImage != nil {
		cover, err := compose.CoverBackground(*req.BackgroundImage, s.Width, s.Height)
		if err != nil {
			return nil, err
		}
		doc.Groups = append(doc.Groups, Group{
			Name:      GroupBackgroundImage,
			Collapsed: true,
			Layers:    []Layer{{Name: layerName(req.BackgroundImage.Name, "Background"), Image: cover}},
		})
	}

	fg, err := composer.Foreground(req.Foreground)
	if err != nil {
		return nil, err
	}
	layer, at, ok := raster.ContainLayer(fg, s.Width, s.Height, s.Padding)
	if !ok {
		return nil, &compose.ValidationError{Field: "padding", Reason: "no drawable area"}
	}
	doc.Groups = append(doc.Groups, Group{
		Name:      GroupProduct,
		Collapsed: true,
		Layers:    []Layer{{Name: layerName(req.Foreground.Name, "Product"), Image: layer, Left: at.Min.X, Top: at.Min.Y}},
	})
	return doc, nil
}

// Emit builds the document, renders its preview and encodes it.
func Emit(req EmitRequest) (*Emission, error) {
	doc, err := Build(req)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return &Emission{Document: doc, Preview: doc.Composite(), Data: buf.Bytes()}, nil
}

func layerName(filename, fallback string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if stem == "" || stem == "." {
		return fallback
	}
	return stem
}
