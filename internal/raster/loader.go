package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode marks a file that could not be turned into a bitmap.
	ErrDecode = errors.New("raster: decode failed")
	// ErrTooLarge marks an image or canvas beyond the supported size.
	ErrTooLarge = errors.New("image too large, reduce dimensions")
)

// MaxDecodePixels bounds the bitmap Load is willing to allocate.
const MaxDecodePixels = 100_000_000

// Load decodes src into an owned bitmap. EXIF orientation is applied so that
// phone photos come out upright. The header is checked first: inputs above
// MaxDecodePixels wrap ErrTooLarge and are never allocated. Decode problems
// are returned as errors wrapping ErrDecode and never panic into the caller.
func Load(src Source) (h *Handle, err error) {
	name := strings.TrimSpace(src.Name)
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrDecode, name)
	}
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = fmt.Errorf("%w: %s: %v", ErrDecode, name, r)
		}
	}()
	w, ht, _, err := Probe(src)
	if err != nil {
		return nil, err
	}
	if int64(w)*int64(ht) > MaxDecodePixels {
		return nil, fmt.Errorf("raster: %s: %dx%d: %w", name, w, ht, ErrTooLarge)
	}
	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrDecode, name)
	}
	return newHandle(toNRGBA(img)), nil
}

// Probe reads only the header of src and returns its pixel size and format name.
func Probe(src Source) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(src.Data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %s: %v", ErrDecode, src.Name, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
