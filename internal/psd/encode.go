package psd

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/text/encoding/unicode"

	"mediatools/internal/raster"
)

// MaxSide is the largest canvas side a version 1 document can hold.
const MaxSide = 30000

const (
	compressionRaw = 0
	compressionRLE = 1

	colorModeRGB = 3

	sectionOpen    = 1
	sectionClosed  = 2
	sectionDivider = 3

	// flags: bit 4 is meaningful, pixel data irrelevant
	flagsGroup = 0x18

	dividerName = "</Layer group>"
)

// Channel order inside every layer record: transparency, then RGB.
var channelIDs = [4]int16{-1, 0, 1, 2}

// Pixel offsets of channelIDs inside an NRGBA pixel.
var channelOffsets = [4]int{3, 0, 1, 2}

type record struct {
	name    string
	rect    image.Rectangle
	img     *image.NRGBA
	blend   string
	section int
	flags   byte
}

// Encode writes doc as an 8-bit RGB document. Groups become layer folders
// with section dividers and every channel is PackBits compressed. The merged
// image is the flattened composite over white.
func Encode(w io.Writer, doc *Document) error {
	if doc.Width <= 0 || doc.Height <= 0 {
		return fmt.Errorf("psd: invalid canvas %dx%d", doc.Width, doc.Height)
	}
	if doc.Width > MaxSide || doc.Height > MaxSide {
		return fmt.Errorf("psd: canvas %dx%d: %w", doc.Width, doc.Height, ErrTooLarge)
	}

	layers, err := layerInfo(records(doc))
	if err != nil {
		return err
	}
	if uint64(len(layers))+8 > math.MaxUint32 {
		return fmt.Errorf("psd: layer section of %d bytes: %w", len(layers), ErrTooLarge)
	}

	out := make([]byte, 0, 26+16+len(layers))
	out = append(out, "8BPS"...)
	out = be16(out, 1)
	out = append(out, 0, 0, 0, 0, 0, 0)
	out = be16(out, 3)
	out = be32(out, uint32(doc.Height))
	out = be32(out, uint32(doc.Width))
	out = be16(out, 8)
	out = be16(out, colorModeRGB)
	out = be32(out, 0) // color mode data
	out = be32(out, 0) // image resources

	out = be32(out, uint32(4+len(layers)+4))
	out = be32(out, uint32(len(layers)))
	out = append(out, layers...)
	out = be32(out, 0) // global layer mask

	merged := raster.Flatten(doc.Composite(), color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	out = mergedImage(out, merged)

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("psd: write: %w", err)
	}
	return nil
}

// records lists the layer records bottom to top: a divider closes each
// folder, followed by its layers and the folder header itself.
func records(doc *Document) []record {
	var recs []record
	for _, g := range doc.Groups {
		recs = append(recs, record{name: dividerName, blend: "norm", section: sectionDivider, flags: flagsGroup})
		for _, l := range g.Layers {
			recs = append(recs, record{name: l.Name, rect: l.Bounds(), img: l.Image, blend: "norm"})
		}
		kind := sectionOpen
		if g.Collapsed {
			kind = sectionClosed
		}
		recs = append(recs, record{name: g.Name, blend: "pass", section: kind, flags: flagsGroup})
	}
	return recs
}

func layerInfo(recs []record) ([]byte, error) {
	channels := make([][4][]byte, len(recs))
	for i, r := range recs {
		channels[i] = channelData(r)
	}
	info := be16(nil, uint16(len(recs)))
	for i, r := range recs {
		var err error
		if info, err = r.appendTo(info, channels[i]); err != nil {
			return nil, err
		}
	}
	for _, ch := range channels {
		for _, c := range ch {
			info = append(info, c...)
		}
	}
	if len(info)%2 != 0 {
		info = append(info, 0)
	}
	return info, nil
}

func (r record) appendTo(dst []byte, channels [4][]byte) ([]byte, error) {
	dst = be32(dst, uint32(int32(r.rect.Min.Y)))
	dst = be32(dst, uint32(int32(r.rect.Min.X)))
	dst = be32(dst, uint32(int32(r.rect.Max.Y)))
	dst = be32(dst, uint32(int32(r.rect.Max.X)))
	dst = be16(dst, uint16(len(channelIDs)))
	for i, id := range channelIDs {
		if uint64(len(channels[i])) > math.MaxUint32 {
			return nil, fmt.Errorf("psd: layer %q channel: %w", r.name, ErrTooLarge)
		}
		dst = be16(dst, uint16(id))
		dst = be32(dst, uint32(len(channels[i])))
	}
	dst = append(dst, "8BIM"...)
	dst = append(dst, r.blend...)
	dst = append(dst, 0xff, 0, r.flags, 0)

	extra := be32(nil, 0) // layer mask
	extra = be32(extra, 0) // blending ranges
	extra = pascalName(extra, r.name)
	name, err := unicodeName(r.name)
	if err != nil {
		return nil, fmt.Errorf("psd: layer name %q: %w", r.name, err)
	}
	extra = taggedBlock(extra, "luni", name)
	if r.section != 0 {
		body := be32(nil, uint32(r.section))
		if r.section != sectionDivider {
			body = append(body, "8BIM"...)
			body = append(body, r.blend...)
		}
		extra = taggedBlock(extra, "lsct", body)
	}
	dst = be32(dst, uint32(len(extra)))
	return append(dst, extra...), nil
}

func channelData(r record) [4][]byte {
	var out [4][]byte
	if r.img == nil || r.rect.Empty() {
		for i := range out {
			out[i] = be16(nil, compressionRaw)
		}
		return out
	}
	h := r.img.Rect.Dy()
	for i, off := range channelOffsets {
		counts := be16(make([]byte, 0, 2+2*h), compressionRLE)
		var data []byte
		forEachRow(r.img, off, func(row []byte) {
			before := len(data)
			data = packBits(data, row)
			counts = be16(counts, uint16(len(data)-before))
		})
		out[i] = append(counts, data...)
	}
	return out
}

// mergedImage appends the image data section: RLE row counts for every
// channel, then the rows themselves.
func mergedImage(dst []byte, img *image.NRGBA) []byte {
	dst = be16(dst, compressionRLE)
	var data []byte
	for _, off := range channelOffsets[1:] {
		forEachRow(img, off, func(row []byte) {
			before := len(data)
			data = packBits(data, row)
			dst = be16(dst, uint16(len(data)-before))
		})
	}
	return append(dst, data...)
}

func forEachRow(img *image.NRGBA, offset int, fn func(row []byte)) {
	b := img.Rect
	row := make([]byte, b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		p := img.PixOffset(b.Min.X, y) + offset
		for x := range row {
			row[x] = img.Pix[p+4*x]
		}
		fn(row)
	}
}

// packBits appends the PackBits encoding of row: runs of two or more equal
// bytes become a (1-n, value) pair, everything else literal blocks of at most
// 128 bytes.
func packBits(dst, row []byte) []byte {
	n := len(row)
	for i := 0; i < n; {
		j := i + 1
		for j < n && j-i < 128 && row[j] == row[i] {
			j++
		}
		if j-i >= 2 {
			dst = append(dst, byte(257-(j-i)), row[i])
			i = j
			continue
		}
		start := i
		for i < n && i-start < 128 {
			if i > start && i+1 < n && row[i] == row[i+1] {
				break
			}
			i++
		}
		dst = append(dst, byte(i-start-1))
		dst = append(dst, row[start:i]...)
	}
	return dst
}

func pascalName(dst []byte, name string) []byte {
	b := make([]byte, 0, len(name))
	for _, r := range name {
		if r < 0x80 {
			b = append(b, byte(r))
		} else {
			b = append(b, '?')
		}
	}
	if len(b) > 255 {
		b = b[:255]
	}
	start := len(dst)
	dst = append(dst, byte(len(b)))
	dst = append(dst, b...)
	for (len(dst)-start)%4 != 0 {
		dst = append(dst, 0)
	}
	return dst
}

func unicodeName(name string) ([]byte, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	utf16, err := enc.Bytes([]byte(name))
	if err != nil {
		return nil, err
	}
	body := be32(make([]byte, 0, 4+len(utf16)+2), uint32(len(utf16)/2))
	body = append(body, utf16...)
	for len(body)%4 != 0 {
		body = append(body, 0)
	}
	return body, nil
}

func taggedBlock(dst []byte, key string, body []byte) []byte {
	dst = append(dst, "8BIM"...)
	dst = append(dst, key...)
	dst = be32(dst, uint32(len(body)))
	return append(dst, body...)
}

func be16(dst []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(dst, v) }
func be32(dst []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(dst, v) }
