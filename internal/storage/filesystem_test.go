package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"shoe.png":         "shoe.png",
		"./exports/a.png":  "exports/a.png",
		`exports\b.png`:    "exports/b.png",
		"/abs/c.png":       "abs/c.png",
		"exports/../d.png": "d.png",
		"  spaced/e.zip  ": "spaced/e.zip",
		"originals//f.jpg": "originals/f.jpg",
		"a/./b/../g.tiff":  "a/g.tiff",
	}
	for in, want := range cases {
		got, err := sanitizeKey(in)
		if err != nil {
			t.Fatalf("sanitizeKey(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("sanitizeKey(%q) mismatch: got %q want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "  ", ".", "..", "../escape.png", "a/../../b"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("sanitizeKey(%q) should fail", bad)
		}
	}
}

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	key, err := store.Write(ctx, "exports/run/shoe.png", []byte("png"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "exports/run/shoe.png" {
		t.Fatalf("key mismatch: got %q", key)
	}
	onDisk, err := os.ReadFile(filepath.Join(store.BasePath(), "exports", "run", "shoe.png"))
	if err != nil || string(onDisk) != "png" {
		t.Fatalf("file on disk mismatch: %q, %v", onDisk, err)
	}
	if _, err := store.Write(ctx, "exports/run/shoe.png", []byte("png2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil || string(data) != "png2" {
		t.Fatalf("Read mismatch: %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Join(store.BasePath(), "exports", "run"))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "nope.yaml"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreHonorsContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "a.png", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("   "); err == nil {
		t.Fatal("empty base path should be rejected")
	}
}
