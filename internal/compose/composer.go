package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"mediatools/internal/raster"
	"mediatools/internal/watermark"
)

// Composer turns source files into finished canvases for one run. The
// background is synthesized once and copied for every file, so a Composer is
// safe for concurrent use.
type Composer struct {
	settings   Settings
	background *image.NRGBA
}

// NewComposer validates s and prepares the shared background. bgImage, when
// set, is drawn over bg with the cover policy.
func NewComposer(s Settings, bg raster.Background, bgImage *raster.Source) (*Composer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	canvas, err := BuildBackground(s.Width, s.Height, bg, bgImage)
	if err != nil {
		return nil, err
	}
	return &Composer{settings: s, background: canvas}, nil
}

// BuildBackground renders the canvas that sits behind the product.
func BuildBackground(w, h int, bg raster.Background, bgImage *raster.Source) (*image.NRGBA, error) {
	canvas, err := raster.Render(bg, w, h)
	if err != nil {
		return nil, &ValidationError{Field: "background", Reason: err.Error()}
	}
	if bgImage == nil {
		return canvas, nil
	}
	layer, err := CoverBackground(*bgImage, w, h)
	if err != nil {
		return nil, err
	}
	raster.DrawLayer(canvas, layer, image.Point{})
	return canvas, nil
}

// CoverBackground decodes a background photo and scales it to cover w x h.
// A background that cannot be decoded is a configuration problem for the
// whole run, not a per-file failure.
func CoverBackground(src raster.Source, w, h int) (*image.NRGBA, error) {
	handle, err := raster.Load(src)
	if err != nil {
		return nil, &ValidationError{Field: "background image", Reason: err.Error()}
	}
	defer handle.Release()
	return raster.CoverLayer(handle.Image(), w, h), nil
}

// Settings returns the settings the composer was built with.
func (c *Composer) Settings() Settings {
	return c.settings
}

// Canvas returns a private copy of the prepared background.
func (c *Composer) Canvas() *image.NRGBA {
	return raster.Clone(c.background)
}

// Foreground decodes src and applies trimming. The returned image is owned
// by the caller; the decoded bitmap is released before returning.
func (c *Composer) Foreground(src raster.Source) (*image.NRGBA, error) {
	handle, err := raster.Load(src)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	img := handle.Image()
	if c.settings.Trim {
		if trimmed := raster.Trim(img); trimmed != img {
			return trimmed, nil
		}
	}
	return raster.Clone(img), nil
}

// Compose runs decode, trim, contain-fit onto the background and the optional
// watermark for a single file.
func (c *Composer) Compose(src raster.Source) (*image.NRGBA, error) {
	handle, err := raster.Load(src)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	fg := handle.Image()
	if c.settings.Trim {
		fg = raster.Trim(fg)
	}
	canvas := c.Canvas()
	if !raster.DrawContain(canvas, fg, c.settings.Padding) {
		return nil, &ValidationError{Field: "padding", Reason: "no drawable area"}
	}
	if c.settings.Watermark != nil {
		if err := watermark.Apply(canvas, *c.settings.Watermark); err != nil {
			return nil, err
		}
	}
	return canvas, nil
}

// Render composes src and encodes it in the configured output format.
func (c *Composer) Render(src raster.Source) ([]byte, error) {
	canvas, err := c.Compose(src)
	if err != nil {
		return nil, err
	}
	return EncodeImage(canvas, c.settings.OutputFormat(), c.settings.Quality, src.Name)
}

// EncodeImage encodes img as f, flattening onto white for formats that drop
// the alpha channel.
func EncodeImage(img *image.NRGBA, f raster.Format, quality int, name string) ([]byte, error) {
	if !f.SupportsAlpha() {
		img = raster.Flatten(img, matte)
	}
	var buf bytes.Buffer
	if err := raster.Encode(&buf, img, f, quality); err != nil {
		return nil, fmt.Errorf("compose: %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var matte = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
