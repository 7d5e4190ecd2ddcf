// Package psd builds layered documents from a composition and serializes
// them as Adobe Photoshop (PSD v1) files.
package psd

import (
	"image"

	"mediatools/internal/raster"
)

// Document is a canvas with groups ordered bottom to top.
type Document struct {
	Width  int
	Height int
	Groups []Group
}

// Group is a layer folder. Layers are ordered bottom to top.
type Group struct {
	Name      string
	Collapsed bool
	Layers    []Layer
}

// Layer is a raster placed at (Left, Top) on the document canvas.
type Layer struct {
	Name  string
	Image *image.NRGBA
	Left  int
	Top   int
}

// Bounds returns the layer rectangle in document coordinates.
func (l Layer) Bounds() image.Rectangle {
	if l.Image == nil {
		return image.Rectangle{}
	}
	return image.Rect(l.Left, l.Top, l.Left+l.Image.Rect.Dx(), l.Top+l.Image.Rect.Dy())
}

// Group returns the group called name.
func (d *Document) Group(name string) (Group, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Composite flattens every layer onto a transparent canvas in stacking order.
func (d *Document) Composite() *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	for _, g := range d.Groups {
		for _, l := range g.Layers {
			if l.Image == nil {
				continue
			}
			raster.DrawLayer(canvas, l.Image, image.Pt(l.Left, l.Top))
		}
	}
	return canvas
}
