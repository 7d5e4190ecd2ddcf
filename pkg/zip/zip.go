// Package zip packages export results into a single archive.
package zip

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// MIME is the content type of archives produced by ArchiveAssets.
const MIME = "application/zip"

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes assets in order. Entry names are made unique with a
// numeric suffix ("shoe.png", "shoe-1.png", ...). Images are stored since they
// are already compressed; everything else is deflated.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	names := NewNameSet()
	modified := time.Now()
	for _, asset := range assets {
		hdr := &zip.FileHeader{
			Name:     names.Claim(asset.Filename),
			Method:   methodFor(asset.MIME),
			Modified: modified,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", hdr.Name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", hdr.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func methodFor(mime string) uint16 {
	if strings.HasPrefix(mime, "image/") && mime != "image/bmp" && mime != "image/tiff" {
		return zip.Store
	}
	return zip.Deflate
}

// NameSet hands out unique entry names. Comparison is case-insensitive so the
// archive extracts cleanly on case-insensitive filesystems.
type NameSet struct {
	seen map[string]struct{}
}

func NewNameSet() *NameSet {
	return &NameSet{seen: make(map[string]struct{})}
}

// Claim returns name, or name with the first free "-N" suffix before its
// extension.
func (s *NameSet) Claim(name string) string {
	name = strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if name == "" {
		name = "file"
	}
	if s.take(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ext
		if s.take(candidate) {
			return candidate
		}
	}
}

func (s *NameSet) take(name string) bool {
	key := strings.ToLower(name)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}
