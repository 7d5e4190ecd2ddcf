package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"mediatools/internal/raster"
	"mediatools/internal/watermark"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func pngSource(t *testing.T, name string, img image.Image) raster.Source {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return raster.Source{Name: name, Data: buf.Bytes()}
}

// product returns a transparent canvas with an opaque red block inside it.
func product(w, h int, block image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}

func TestComposeContainsOnBackground(t *testing.T) {
	c, err := NewComposer(Settings{Width: 100, Height: 100, Padding: 10}, raster.Solid{Color: white}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	out, err := c.Compose(pngSource(t, "wide.png", product(160, 80, image.Rect(0, 0, 160, 80))))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("canvas = %v", out.Bounds())
	}
	if out.NRGBAAt(50, 50) != red || out.NRGBAAt(50, 20) != white || out.NRGBAAt(2, 50) != white {
		t.Fatal("product not contained within padded area")
	}
}

func TestComposeTrimEnlargesProduct(t *testing.T) {
	src := pngSource(t, "padded.png", product(100, 100, image.Rect(40, 40, 60, 60)))

	plain, err := NewComposer(Settings{Width: 100, Height: 100}, raster.Solid{Color: white}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	out, err := plain.Compose(src)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out.NRGBAAt(10, 10) != white {
		t.Fatal("untrimmed product should keep its transparent border")
	}

	trimmed, err := NewComposer(Settings{Width: 100, Height: 100, Trim: true}, raster.Solid{Color: white}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	out, err = trimmed.Compose(src)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out.NRGBAAt(10, 10) != red {
		t.Fatalf("trimmed product should fill the canvas, got %v", out.NRGBAAt(10, 10))
	}
}

func TestComposeReleasesBitmaps(t *testing.T) {
	before := raster.LiveHandles()
	c, err := NewComposer(Settings{Width: 50, Height: 50}, nil, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if _, err := c.Compose(pngSource(t, "ok.png", product(10, 10, image.Rect(0, 0, 10, 10)))); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, err := c.Compose(raster.Source{Name: "bad.png", Data: []byte("nope")}); !errors.Is(err, raster.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if got := raster.LiveHandles(); got != before {
		t.Fatalf("LiveHandles = %d, want %d", got, before)
	}
}

func TestComposeUsesBackgroundImage(t *testing.T) {
	bg := pngSource(t, "bg.png", product(30, 10, image.Rect(0, 0, 30, 10)))
	c, err := NewComposer(Settings{Width: 40, Height: 40, Padding: 15}, raster.Solid{Color: white}, &bg)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	out, err := c.Compose(pngSource(t, "dot.png", product(2, 2, image.Rect(0, 0, 2, 2))))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := out.NRGBAAt(1, 1); got != red {
		t.Fatalf("background image should cover the canvas, got %v", got)
	}
}

func TestNewComposerRejectsBadBackgroundImage(t *testing.T) {
	bg := raster.Source{Name: "broken.jpg", Data: []byte{0xff, 0xd8, 0x00}}
	_, err := NewComposer(Settings{Width: 40, Height: 40}, nil, &bg)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRenderAppliesWatermarkAndFormat(t *testing.T) {
	mark := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 3; i < len(mark.Pix); i += 4 {
		mark.Pix[i] = 0xff
	}
	s := Settings{
		Width:     60,
		Height:    60,
		Format:    raster.FormatJPEG,
		Quality:   90,
		Watermark: &watermark.Options{Image: mark, Anchor: watermark.TopLeft, Opacity: 1},
	}
	c, err := NewComposer(s, raster.Solid{Color: white}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	data, err := c.Render(pngSource(t, "p.png", product(10, 10, image.Rect(4, 4, 6, 6))))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "jpeg" {
		t.Fatalf("output format = %q, %v", format, err)
	}
	h, err := raster.Load(raster.Source{Name: "out.jpg", Data: data})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer h.Release()
	if px := h.Image().NRGBAAt(1, 1); px.R > 0x40 {
		t.Fatalf("watermark missing at top-left, got %v", px)
	}
}
