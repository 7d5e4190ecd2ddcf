package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// TileBase is the pattern tile side, in pixels, at scale 1.
const TileBase = 20

// Background describes how the canvas behind the product is filled. Exactly
// one of Solid, Gradient or Pattern.
type Background interface {
	Validate() error
	isBackground()
}

// Solid fills the canvas with a single color.
type Solid struct {
	Color color.NRGBA
}

// GradientAngle selects one of the four supported gradient directions.
type GradientAngle int

const (
	GradientVertical     GradientAngle = 0
	GradientDiagonal     GradientAngle = 45
	GradientHorizontal   GradientAngle = 90
	GradientAntiDiagonal GradientAngle = 135
)

// Gradient is a two-stop linear gradient.
type Gradient struct {
	From  color.NRGBA
	To    color.NRGBA
	Angle GradientAngle
}

// PatternKind names a procedural tile.
type PatternKind string

const (
	PatternCheckerboard PatternKind = "checkerboard"
	PatternStripes      PatternKind = "stripes"
	PatternDots         PatternKind = "dots"
)

// Pattern repeats a small two-color tile across the canvas.
type Pattern struct {
	Kind   PatternKind
	Color1 color.NRGBA
	Color2 color.NRGBA
	Scale  int
}

func (Solid) isBackground()    {}
func (Gradient) isBackground() {}
func (Pattern) isBackground()  {}

func (Solid) Validate() error { return nil }

func (g Gradient) Validate() error {
	switch g.Angle {
	case GradientVertical, GradientDiagonal, GradientHorizontal, GradientAntiDiagonal:
		return nil
	}
	return fmt.Errorf("raster: unsupported gradient angle %d", g.Angle)
}

func (p Pattern) Validate() error {
	switch p.Kind {
	case PatternCheckerboard, PatternStripes, PatternDots:
	default:
		return fmt.Errorf("raster: unsupported pattern %q", p.Kind)
	}
	if p.Scale < 1 {
		return fmt.Errorf("raster: pattern scale must be at least 1, got %d", p.Scale)
	}
	return nil
}

// Render synthesizes a w x h background. A nil bg yields a transparent canvas.
func Render(bg Background, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("raster: invalid canvas %dx%d", w, h)
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	if bg == nil {
		return out, nil
	}
	if err := bg.Validate(); err != nil {
		return nil, err
	}
	switch v := bg.(type) {
	case Solid:
		fill(out, v.Color)
	case Gradient:
		renderGradient(out, v)
	case Pattern:
		tileAcross(out, renderTile(v))
	default:
		return nil, fmt.Errorf("raster: unknown background %T", bg)
	}
	return out, nil
}

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	row := img.Pix[:b.Dx()*4]
	for i := 0; i < len(row); i += 4 {
		row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
	}
	for y := 1; y < b.Dy(); y++ {
		copy(img.Pix[y*img.Stride:], row)
	}
}

func renderGradient(img *image.NRGBA, g Gradient) {
	w, h := float64(img.Rect.Dx()), float64(img.Rect.Dy())
	var x0, y0, x1, y1 float64
	switch g.Angle {
	case GradientVertical:
		x1, y1 = 0, h
	case GradientHorizontal:
		x1, y1 = w, 0
	case GradientDiagonal:
		x1, y1 = w, h
	case GradientAntiDiagonal:
		x0, y0, x1, y1 = w, 0, 0, h
	}
	dx, dy := x1-x0, y1-y0
	length := dx*dx + dy*dy
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			t := ((px-x0)*dx + (py-y0)*dy) / length
			img.SetNRGBA(x, y, lerp(g.From, g.To, math.Max(0, math.Min(1, t))))
		}
	}
}

func lerp(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(p, q uint8) uint8 {
		return uint8(math.Round(float64(p) + (float64(q)-float64(p))*t))
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

func renderTile(p Pattern) *image.NRGBA {
	size := TileBase * p.Scale
	half := size / 2
	base := p.Color2
	if p.Kind == PatternDots {
		base = p.Color1
	}
	tile := imaging.New(size, size, base)
	switch p.Kind {
	case PatternCheckerboard:
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if (x < half) == (y < half) {
					tile.SetNRGBA(x, y, p.Color1)
				}
			}
		}
	case PatternStripes:
		for y := 0; y < half; y++ {
			for x := 0; x < size; x++ {
				tile.SetNRGBA(x, y, p.Color1)
			}
		}
	case PatternDots:
		c := float64(size) / 2
		r := float64(size) / 4
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				fx, fy := float64(x)+0.5-c, float64(y)+0.5-c
				if fx*fx+fy*fy <= r*r {
					tile.SetNRGBA(x, y, p.Color2)
				}
			}
		}
	}
	return tile
}

func tileAcross(dst, tile *image.NRGBA) {
	size := tile.Rect.Dx()
	for y := 0; y < dst.Rect.Dy(); y++ {
		trow := tile.Pix[(y%size)*tile.Stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < dst.Rect.Dx(); x++ {
			copy(drow[x*4:x*4+4], trow[(x%size)*4:(x%size)*4+4])
		}
	}
}

// ParseColor accepts "#rgb", "#rrggbb" and "#rrggbbaa", with or without the
// leading hash.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("raster: invalid color %q", s)
	}
	var ch [4]uint8
	for i := range ch {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("raster: invalid color %q", s)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// ParseBackground reads the compact form used by flags and presets:
//
//	solid:#ffffff
//	gradient:#ff0000:#0000ff:45
//	pattern:dots:#ffffff:#000000:2
//
// An empty string means no background.
func ParseBackground(spec string) (Background, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "none" {
		return nil, nil
	}
	parts := strings.Split(spec, ":")
	switch strings.ToLower(parts[0]) {
	case "solid":
		if len(parts) != 2 {
			return nil, errors.New("raster: solid background needs one color")
		}
		c, err := ParseColor(parts[1])
		if err != nil {
			return nil, err
		}
		return Solid{Color: c}, nil
	case "gradient":
		if len(parts) != 4 {
			return nil, errors.New("raster: gradient background needs two colors and an angle")
		}
		from, err := ParseColor(parts[1])
		if err != nil {
			return nil, err
		}
		to, err := ParseColor(parts[2])
		if err != nil {
			return nil, err
		}
		angle, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("raster: invalid gradient angle %q", parts[3])
		}
		g := Gradient{From: from, To: to, Angle: GradientAngle(angle)}
		return g, g.Validate()
	case "pattern":
		if len(parts) != 5 {
			return nil, errors.New("raster: pattern background needs kind, two colors and a scale")
		}
		c1, err := ParseColor(parts[2])
		if err != nil {
			return nil, err
		}
		c2, err := ParseColor(parts[3])
		if err != nil {
			return nil, err
		}
		scale, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("raster: invalid pattern scale %q", parts[4])
		}
		p := Pattern{Kind: PatternKind(strings.ToLower(parts[1])), Color1: c1, Color2: c2, Scale: scale}
		return p, p.Validate()
	}
	return nil, fmt.Errorf("raster: unknown background %q", parts[0])
}

// FormatBackground is the inverse of ParseBackground.
func FormatBackground(bg Background) string {
	switch v := bg.(type) {
	case Solid:
		return "solid:" + FormatColor(v.Color)
	case Gradient:
		return fmt.Sprintf("gradient:%s:%s:%d", FormatColor(v.From), FormatColor(v.To), v.Angle)
	case Pattern:
		return fmt.Sprintf("pattern:%s:%s:%s:%d", v.Kind, FormatColor(v.Color1), FormatColor(v.Color2), v.Scale)
	}
	return ""
}

// FormatColor renders c as #rrggbb, or #rrggbbaa when it is not opaque.
func FormatColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
