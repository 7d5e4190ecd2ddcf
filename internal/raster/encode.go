package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Format is an output raster encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when a caller leaves the quality unset.
const DefaultJPEGQuality = 92

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("raster: unsupported format %q", s)
}

// FormatFromName infers the format from a filename extension.
func FormatFromName(name string) (Format, error) {
	return ParseFormat(filepath.Ext(name))
}

// Extension returns the canonical file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatGIF:
		return ".gif"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	default:
		return ".png"
	}
}

// MIME returns the media type for f.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// SupportsAlpha reports whether f keeps transparency.
func (f Format) SupportsAlpha() bool {
	return f != FormatJPEG && f != FormatBMP
}

// Encode writes img to w. quality only applies to JPEG; values outside 1..100
// fall back to DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	var target imaging.Format
	var opts []imaging.EncodeOption
	switch f {
	case FormatPNG, "":
		target = imaging.PNG
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		target = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(quality))
	case FormatGIF:
		target = imaging.GIF
	case FormatBMP:
		target = imaging.BMP
	case FormatTIFF:
		target = imaging.TIFF
	default:
		return fmt.Errorf("raster: unsupported format %q", f)
	}
	if err := imaging.Encode(w, img, target, opts...); err != nil {
		return fmt.Errorf("raster: encode %s: %w", f, err)
	}
	return nil
}

// Flatten composites img over an opaque matte, for formats without alpha.
func Flatten(img *image.NRGBA, matte color.NRGBA) *image.NRGBA {
	matte.A = 0xff
	out := image.NewNRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	fill(out, matte)
	xdraw.Draw(out, out.Bounds(), img, img.Rect.Min, xdraw.Over)
	return out
}
