// Package raster holds the pixel-level building blocks of the media tools:
// decoding uploads into owned bitmaps, alpha trimming, cover and contain
// fitting, background synthesis and output encoding.
//
// Every function works on *image.NRGBA anchored at the origin. Decoded
// bitmaps are wrapped in a Handle which must be released on every exit path:
//
//	h, err := raster.Load(src)
//	if err != nil {
//		return err
//	}
//	defer h.Release()
package raster
