package raster

import (
	"image"

	"github.com/disintegration/imaging"
)

// TrimBounds returns the smallest rectangle holding every pixel with a
// non-zero alpha. A fully transparent image yields the empty rectangle.
func TrimBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for i := 0; i < b.Dx(); i++ {
			if row[i*4+3] == 0 {
				continue
			}
			x := b.Min.X + i
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			maxY = y
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Trim crops img to TrimBounds. Fully transparent input produces a 1x1
// transparent placeholder rather than an error. When nothing needs cropping
// img itself is returned.
func Trim(img *image.NRGBA) *image.NRGBA {
	r := TrimBounds(img)
	if r.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}
	if r == img.Bounds() && r.Min == (image.Point{}) {
		return img
	}
	return imaging.Crop(img, r)
}
