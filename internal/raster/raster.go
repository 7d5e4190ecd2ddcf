package raster

import (
	"image"
	"sync/atomic"
)

// Source is an uploaded file: the original name plus its raw bytes.
type Source struct {
	Name string
	Data []byte
}

// Clone returns a copy of the source that shares no memory with s, so a worker
// can own its input outright.
func (s Source) Clone() Source {
	return Source{Name: s.Name, Data: append([]byte(nil), s.Data...)}
}

var liveHandles atomic.Int64

// Handle owns a decoded bitmap. Callers must Release it on every exit path.
type Handle struct {
	img *image.NRGBA
}

func newHandle(img *image.NRGBA) *Handle {
	liveHandles.Add(1)
	return &Handle{img: img}
}

// Image returns the decoded pixels, or nil once the handle is released.
func (h *Handle) Image() *image.NRGBA {
	if h == nil {
		return nil
	}
	return h.img
}

// Release drops the pixel buffer. It is safe to call more than once.
func (h *Handle) Release() {
	if h == nil || h.img == nil {
		return
	}
	h.img = nil
	liveHandles.Add(-1)
}

// LiveHandles reports how many decoded bitmaps have not been released yet.
func LiveHandles() int64 {
	return liveHandles.Load()
}

// Clone copies img into a fresh buffer anchored at the origin.
func Clone(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], src[:b.Dx()*4])
	}
	return out
}
