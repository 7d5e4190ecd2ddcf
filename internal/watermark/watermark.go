// Package watermark stamps a text or image mark onto composited output.
package watermark

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Anchor is one of the nine placement points on the canvas.
type Anchor string

const (
	TopLeft     Anchor = "top-left"
	Top         Anchor = "top"
	TopRight    Anchor = "top-right"
	Left        Anchor = "left"
	Center      Anchor = "center"
	Right       Anchor = "right"
	BottomLeft  Anchor = "bottom-left"
	Bottom      Anchor = "bottom"
	BottomRight Anchor = "bottom-right"
)

const defaultScale = 2

// Options configures a mark. Exactly one of Text or Image must be set.
type Options struct {
	Text    string
	Color   color.NRGBA
	Scale   int
	Image   *image.NRGBA
	Anchor  Anchor
	Margin  int
	Opacity float64
	Tile    bool
}

// Validate checks the options without touching any pixels.
func (o Options) Validate() error {
	hasText := strings.TrimSpace(o.Text) != ""
	if hasText == (o.Image != nil) {
		return errors.New("watermark: exactly one of text or image is required")
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("watermark: opacity %.2f outside 0..1", o.Opacity)
	}
	if o.Margin < 0 {
		return fmt.Errorf("watermark: negative margin %d", o.Margin)
	}
	if _, ok := anchorFactors[o.anchor()]; !ok {
		return fmt.Errorf("watermark: unknown anchor %q", o.Anchor)
	}
	return nil
}

func (o Options) anchor() Anchor {
	if o.Anchor == "" {
		return BottomRight
	}
	return o.Anchor
}

var anchorFactors = map[Anchor][2]int{
	TopLeft: {0, 0}, Top: {1, 0}, TopRight: {2, 0},
	Left: {0, 1}, Center: {1, 1}, Right: {2, 1},
	BottomLeft: {0, 2}, Bottom: {1, 2}, BottomRight: {2, 2},
}

// Apply draws the mark onto dst in place.
func Apply(dst *image.NRGBA, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	mark := o.Image
	if mark == nil {
		mark = RenderText(o.Text, o.Color, o.Scale)
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(o.Opacity * 255))})
	mb := mark.Bounds()
	if o.Tile {
		step := image.Pt(mb.Dx()+max(o.Margin, 1), mb.Dy()+max(o.Margin, 1))
		for y := dst.Rect.Min.Y; y < dst.Rect.Max.Y; y += step.Y {
			for x := dst.Rect.Min.X; x < dst.Rect.Max.X; x += step.X {
				r := image.Rect(x, y, x+mb.Dx(), y+mb.Dy())
				draw.DrawMask(dst, r, mark, mb.Min, mask, image.Point{}, draw.Over)
			}
		}
		return nil
	}
	at := Position(dst.Bounds(), mb.Size(), o.anchor(), o.Margin)
	draw.DrawMask(dst, image.Rectangle{Min: at, Max: at.Add(mb.Size())}, mark, mb.Min, mask, image.Point{}, draw.Over)
	return nil
}

// Position returns the top-left corner of a mark of the given size anchored
// inside canvas with margin pixels of clearance.
func Position(canvas image.Rectangle, size image.Point, anchor Anchor, margin int) image.Point {
	f := anchorFactors[anchor]
	x := canvas.Min.X + margin + f[0]*(canvas.Dx()-2*margin-size.X)/2
	y := canvas.Min.Y + margin + f[1]*(canvas.Dy()-2*margin-size.Y)/2
	return image.Pt(x, y)
}

// RenderText rasterizes text with the built-in 7x13 bitmap face, enlarged by
// scale with nearest-neighbour sampling to keep the glyph edges crisp.
func RenderText(text string, c color.NRGBA, scale int) *image.NRGBA {
	if scale < 1 {
		scale = defaultScale
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w := d.MeasureString(text).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	glyphs := image.NewNRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	d.Dst = glyphs
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(0, m.Ascent.Ceil())
	d.DrawString(text)
	if scale == 1 {
		return glyphs
	}
	out := image.NewNRGBA(image.Rect(0, 0, glyphs.Rect.Dx()*scale, glyphs.Rect.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), glyphs, glyphs.Bounds(), draw.Src, nil)
	return out
}
