package watermark

import (
	"image"
	"image/color"
	"testing"
)

var (
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.NRGBA{A: 0xff}
)

func canvas(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0xff, 0xff, 0xff, 0xff
	}
	return img
}

func TestPosition(t *testing.T) {
	c := image.Rect(0, 0, 100, 60)
	size := image.Pt(20, 10)
	cases := map[Anchor]image.Point{
		TopLeft:     {5, 5},
		Center:      {40, 25},
		BottomRight: {75, 45},
		Bottom:      {40, 45},
		Left:        {5, 25},
	}
	for anchor, want := range cases {
		if got := Position(c, size, anchor, 5); got != want {
			t.Fatalf("Position(%s) = %v, want %v", anchor, got, want)
		}
	}
}

func TestApplyImageMarkAtAnchor(t *testing.T) {
	dst := canvas(50, 50)
	mark := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 3; i < len(mark.Pix); i += 4 {
		mark.Pix[i] = 0xff
	}
	if err := Apply(dst, Options{Image: mark, Anchor: BottomRight, Margin: 2, Opacity: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := dst.NRGBAAt(45, 45); got != black {
		t.Fatalf("mark pixel = %v, want black", got)
	}
	if got := dst.NRGBAAt(48, 48); got != white {
		t.Fatalf("margin pixel = %v, want white", got)
	}
	if got := dst.NRGBAAt(10, 10); got != white {
		t.Fatalf("untouched pixel = %v, want white", got)
	}
}

func TestApplyHonorsOpacity(t *testing.T) {
	dst := canvas(10, 10)
	mark := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := 3; i < len(mark.Pix); i += 4 {
		mark.Pix[i] = 0xff
	}
	if err := Apply(dst, Options{Image: mark, Anchor: Center, Opacity: 0.5}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := dst.NRGBAAt(5, 5)
	if got.R < 0x70 || got.R > 0x90 {
		t.Fatalf("half opacity black over white = %v", got)
	}
}

func TestApplyTextAndTile(t *testing.T) {
	dst := canvas(200, 120)
	err := Apply(dst, Options{Text: "SAMPLE", Color: black, Scale: 1, Opacity: 1, Tile: true, Margin: 10})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	dark := 0
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			if dst.NRGBAAt(x, y).R < 0x80 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatal("tiled text left no marks")
	}
}

func TestRenderTextScales(t *testing.T) {
	one := RenderText("AB", black, 1)
	three := RenderText("AB", black, 3)
	if three.Bounds().Dx() != one.Bounds().Dx()*3 || three.Bounds().Dy() != one.Bounds().Dy()*3 {
		t.Fatalf("scaled text %v, base %v", three.Bounds(), one.Bounds())
	}
	if one.Bounds().Dx() != 14 || one.Bounds().Dy() != 13 {
		t.Fatalf("7x13 face should give 14x13 for two glyphs, got %v", one.Bounds())
	}
}

func TestValidate(t *testing.T) {
	mark := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	bad := []Options{
		{},
		{Text: "x", Image: mark, Opacity: 1},
		{Text: "x", Opacity: 1.5},
		{Text: "x", Opacity: 1, Margin: -1},
		{Text: "x", Opacity: 1, Anchor: "middle"},
	}
	for i, o := range bad {
		if err := o.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if err := (Options{Text: "x", Opacity: 0.3}).Validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
}
