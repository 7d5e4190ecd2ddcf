package presets

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
)

func TestStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "presets.yaml")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, LastUsed); err != nil || ok {
		t.Fatalf("empty store Load = %v, %v", ok, err)
	}

	want := Preset{Width: 1080, Height: 1350, Padding: 40, Trim: true, Output: "zip", Background: "solid:#ffffff"}
	if err := store.Save(ctx, LastUsed, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "instagram", Preset{Width: 1080, Height: 1080, Output: "jpeg"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got, ok, err := reopened.Load(ctx, LastUsed)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got != want {
		t.Fatalf("preset mismatch: got %+v want %+v", got, want)
	}
	names, err := reopened.Names(ctx)
	if err != nil || strings.Join(names, ",") != "instagram,last" {
		t.Fatalf("Names = %v, %v", names, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "include_originals") {
		t.Fatalf("omitempty not honored:\n%s", raw)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(path, []byte("presets: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, _, err := store.Load(context.Background(), LastUsed); err == nil {
		t.Fatal("corrupt preset file should fail to load")
	}
}

func TestPresetSettingsRoundTrip(t *testing.T) {
	s := compose.Settings{
		Width:   800,
		Height:  600,
		Padding: 12,
		Trim:    true,
		Format:  raster.FormatJPEG,
		Quality: 80,
		Naming:  compose.NamingPolicy{Mode: compose.NamingLiteral, Base: "shop", Separator: "-"},
	}
	bg := raster.Gradient{From: color.NRGBA{R: 0xff, A: 0xff}, To: color.NRGBA{B: 0xff, A: 0xff}, Angle: raster.GradientDiagonal}

	p := FromSettings(s, bg)
	gotS, gotBG, err := p.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if gotS != s {
		t.Fatalf("settings mismatch: got %+v want %+v", gotS, s)
	}
	if raster.FormatBackground(gotBG) != raster.FormatBackground(bg) {
		t.Fatalf("background mismatch: got %q", raster.FormatBackground(gotBG))
	}

	archive := s
	archive.Archive = true
	if got := FromSettings(archive, nil).Output; got != compose.OutputArchive {
		t.Fatalf("archive output mismatch: got %q", got)
	}
}

func TestPresetSettingsRejectsBadValues(t *testing.T) {
	if _, _, err := (Preset{Output: "heic"}).Settings(); !errors.Is(err, compose.ErrConfig) {
		t.Fatalf("bad output: %v", err)
	}
	if _, _, err := (Preset{Background: "plaid"}).Settings(); !errors.Is(err, compose.ErrConfig) {
		t.Fatalf("bad background: %v", err)
	}
}
