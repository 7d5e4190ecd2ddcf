package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"mediatools/internal/batch"
)

const mimePSD = "image/vnd.adobe.photoshop"

// persistResult writes the run output into the output directory and prints
// where it went. With unpack every output, and every requested original under
// originals/, is written on its own under a directory named after the run.
func (a *app) persistResult(ctx context.Context, res *batch.Result, unpack bool) error {
	if unpack && len(res.Outputs)+len(res.Originals) > 1 {
		dir := "mediatools-" + res.RunID[:8]
		written := 0
		for _, group := range [][]batch.Output{res.Outputs, res.Originals} {
			for _, out := range group {
				if _, err := a.persist(ctx, dir+"/"+out.Name, out.MIME, out.Data); err != nil {
					return err
				}
				written++
			}
		}
		fmt.Fprintf(a.stdout, "%d files written to %s\n", written, filepath.Join(a.store.BasePath(), dir))
		return nil
	}
	key, err := a.persist(ctx, res.BlobName, res.MIME, res.Blob)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, filepath.Join(a.store.BasePath(), filepath.FromSlash(key)))
	return nil
}

func (a *app) persist(ctx context.Context, key, mime string, data []byte) (string, error) {
	key = ensureExtension(key, mime)
	saved, err := a.store.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("persist %s: %w", key, err)
	}
	a.logger.Debug().Str("key", saved).Int("bytes", len(data)).Msg("mediatools: output written")
	return saved, nil
}

func ensureExtension(key, mime string) string {
	expected := extensionForMIME(mime)
	if key == "" || expected == "" {
		return key
	}
	if filepath.Ext(key) == "" {
		return key + expected
	}
	return key
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "application/zip":
		return ".zip"
	case mimePSD:
		return ".psd"
	default:
		return ""
	}
}
