package raster

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Scaler is the resampling kernel used for every fit.
var Scaler xdraw.Scaler = xdraw.CatmullRom

// CoverRect returns the region of a srcW x srcH source that, scaled by the
// larger of the two axis ratios, exactly covers a dstW x dstH destination.
// The overflow is cropped evenly from both sides.
func CoverRect(dstW, dstH, srcW, srcH int) image.Rectangle {
	if dstW <= 0 || dstH <= 0 || srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}
	scale := math.Max(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	cropW := clampInt(int(math.Round(float64(dstW)/scale)), 1, srcW)
	cropH := clampInt(int(math.Round(float64(dstH)/scale)), 1, srcH)
	x := (srcW - cropW) / 2
	y := (srcH - cropH) / 2
	return image.Rect(x, y, x+cropW, y+cropH)
}

// CoverLayer scales src so that it fills a w x h canvas without distortion.
func CoverLayer(src image.Image, w, h int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	crop := CoverRect(w, h, b.Dx(), b.Dy())
	if crop.Empty() {
		return out
	}
	Scaler.Scale(out, out.Bounds(), src, crop.Add(b.Min), xdraw.Src, nil)
	return out
}

// DrawCover paints src over the whole of dst using the cover policy.
func DrawCover(dst *image.NRGBA, src image.Image) {
	b := dst.Bounds()
	DrawLayer(dst, CoverLayer(src, b.Dx(), b.Dy()), image.Point{})
}

// DrawLayer composites layer over dst with its top-left corner at the given
// offset, the same way a layered document is flattened.
func DrawLayer(dst *image.NRGBA, layer image.Image, at image.Point) {
	lb := layer.Bounds()
	r := image.Rectangle{Min: at, Max: at.Add(lb.Size())}.Add(dst.Rect.Min)
	xdraw.Draw(dst, r, layer, lb.Min, xdraw.Over)
}

// ContainRect places a srcW x srcH source inside a dstW x dstH destination
// inset by padding on every side. The result is the largest aspect-preserving
// rectangle centered in the available area. ok is false when padding leaves
// no drawable area; callers treat that as a no-op.
func ContainRect(dstW, dstH, padding, srcW, srcH int) (r image.Rectangle, ok bool) {
	availW := dstW - 2*padding
	availH := dstH - 2*padding
	if padding < 0 || availW <= 0 || availH <= 0 || srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}, false
	}
	scale := math.Min(float64(availW)/float64(srcW), float64(availH)/float64(srcH))
	w := clampInt(int(math.Round(float64(srcW)*scale)), 1, availW)
	h := clampInt(int(math.Round(float64(srcH)*scale)), 1, availH)
	x := padding + (availW-w)/2
	y := padding + (availH-h)/2
	return image.Rect(x, y, x+w, y+h), true
}

// ContainLayer scales src to the size chosen by ContainRect and returns it
// together with its placement on the destination canvas.
func ContainLayer(src image.Image, dstW, dstH, padding int) (*image.NRGBA, image.Rectangle, bool) {
	b := src.Bounds()
	r, ok := ContainRect(dstW, dstH, padding, b.Dx(), b.Dy())
	if !ok {
		return nil, image.Rectangle{}, false
	}
	layer := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	Scaler.Scale(layer, layer.Bounds(), src, b, xdraw.Src, nil)
	return layer, r, true
}

// DrawContain composites src over dst using the contain policy. Padding is
// never painted over. It reports false, leaving dst untouched, when the
// padded area is empty.
func DrawContain(dst *image.NRGBA, src image.Image, padding int) bool {
	b := dst.Bounds()
	layer, r, ok := ContainLayer(src, b.Dx(), b.Dy(), padding)
	if !ok {
		return false
	}
	DrawLayer(dst, layer, r.Min)
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
