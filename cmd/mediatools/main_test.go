package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mediatools/internal/batch"
	"mediatools/internal/compose"
	"mediatools/internal/infra"
	"mediatools/internal/presets"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &infra.Config{
		AppEnv:       "test",
		MaxDimension: 8000,
		Workers:      2,
		OutputDir:    filepath.Join(dir, "out"),
		PresetsPath:  filepath.Join(dir, "presets.yaml"),
		JPEGQuality:  90,
		Background:   "solid:#ffffff",
	}
	var stdout bytes.Buffer
	a, err := newApp(cfg, zerolog.Nop(), &stdout)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a, &stdout, dir
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0xcc, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestComposeWritesArchiveAndRemembersSettings(t *testing.T) {
	a, stdout, dir := newTestApp(t)
	ctx := context.Background()
	one := writePNG(t, dir, "Blue Mug.png", 20, 10)
	two := writePNG(t, dir, "Blue Mug (1).png", 10, 20)
	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("junk"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := a.run(ctx, []string{"compose", "--width", "64", "--height", "48", "--padding", "4", "-o", "zip", "--save-preset", "shop", one, two, bad})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "1 of 3 files failed") || !strings.Contains(out, ".zip") {
		t.Fatalf("unexpected output: %q", out)
	}

	last, ok, err := a.presets.Load(ctx, presets.LastUsed)
	if err != nil || !ok {
		t.Fatalf("last preset = %v, %v", ok, err)
	}
	if last.Width != 64 || last.Height != 48 || last.Output != "zip" {
		t.Fatalf("last preset mismatch: %+v", last)
	}
	if _, ok, _ := a.presets.Load(ctx, "shop"); !ok {
		t.Fatal("named preset was not saved")
	}

	// A second run without flags starts from the remembered settings.
	stdout.Reset()
	if err := a.run(ctx, []string{"compose", "--unpack", one, two}); err != nil {
		t.Fatalf("compose from last settings: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "out", "mediatools-*", "blue-mug*.png"))
	if len(matches) != 2 {
		t.Fatalf("unpacked outputs mismatch: %v", matches)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 64 || cfg.Height != 48 {
		t.Fatalf("output size mismatch: %+v %v", cfg, err)
	}
}

func TestComposeUnpackWritesOriginals(t *testing.T) {
	a, _, dir := newTestApp(t)
	in := filepath.Join(dir, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	one := writePNG(t, in, "Vase.png", 12, 12)
	two := writePNG(t, in, "Bowl.png", 12, 12)

	if err := a.run(context.Background(), []string{"compose", "--width", "32", "--height", "32", "--originals", "--unpack", one, two}); err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, name := range []string{"vase.png", "bowl.png", "originals/Vase.png", "originals/Bowl.png"} {
		matches, _ := filepath.Glob(filepath.Join(dir, "out", "mediatools-*", filepath.FromSlash(name)))
		if len(matches) != 1 {
			t.Fatalf("unpacked %s mismatch: %v", name, matches)
		}
	}
}

func TestComposeSingleFileAndPSD(t *testing.T) {
	a, stdout, dir := newTestApp(t)
	ctx := context.Background()
	in := writePNG(t, dir, "IMG_0042 Lamp.png", 30, 30)

	if err := a.run(ctx, []string{"compose", "--width", "40", "--height", "40", "-o", "jpg", in}); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "lamp.jpg")); err != nil {
		t.Fatalf("single output missing: %v (stdout %q)", err, stdout.String())
	}

	if err := a.run(ctx, []string{"psd", "--width", "40", "--height", "40", "--preview", in}); err != nil {
		t.Fatalf("psd: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "lamp.psd"))
	if err != nil || !bytes.HasPrefix(data, []byte("8BPS")) {
		t.Fatalf("psd output mismatch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "lamp-preview.png")); err != nil {
		t.Fatalf("preview missing: %v", err)
	}
}

func TestRunReportsConfigurationErrors(t *testing.T) {
	a, _, dir := newTestApp(t)
	ctx := context.Background()
	in := writePNG(t, dir, "a.png", 4, 4)

	cases := []struct {
		args []string
		code int
	}{
		{[]string{"compose"}, exitConfig},
		{[]string{"compose", "--padding", "600", in}, exitConfig},
		{[]string{"compose", "--width", "9000", in}, exitTooLarge},
		{[]string{"compose", "--preset", "missing", in}, exitConfig},
		{[]string{"compose", filepath.Join(dir, "nope.png")}, exitConfig},
		{[]string{"frobnicate"}, exitConfig},
		{[]string{"convert", "--to", "heic", in}, exitConfig},
	}
	for _, tc := range cases {
		err := a.run(ctx, tc.args)
		if err == nil {
			t.Fatalf("%v: expected error", tc.args)
		}
		if got := exitCode(err); got != tc.code {
			t.Fatalf("%v: exit code mismatch: got %d want %d (%v)", tc.args, got, tc.code, err)
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := map[error]int{
		compose.ErrConfig:                        exitConfig,
		fmt.Errorf("x: %w", compose.ErrTooLarge): exitTooLarge,
		batch.ErrAllFailed:                       exitAllFailed,
		context.Canceled:                         exitCancelled,
		errors.New("disk full"):                  exitFailure,
	}
	for err, want := range cases {
		if got := exitCode(err); got != want {
			t.Fatalf("exitCode(%v) mismatch: got %d want %d", err, got, want)
		}
	}
}

func TestEnsureExtension(t *testing.T) {
	cases := []struct {
		key, mime, want string
	}{
		{"shoe", "image/png", "shoe.png"},
		{"shoe.png", "image/png", "shoe.png"},
		{"bundle", "application/zip", "bundle.zip"},
		{"doc", mimePSD, "doc.psd"},
		{"raw", "application/octet-stream", "raw"},
		{"", "image/png", ""},
	}
	for _, tc := range cases {
		if got := ensureExtension(tc.key, tc.mime); got != tc.want {
			t.Fatalf("ensureExtension(%q, %q) mismatch: got %q want %q", tc.key, tc.mime, got, tc.want)
		}
	}
}

func TestPresetsCommand(t *testing.T) {
	a, stdout, _ := newTestApp(t)
	ctx := context.Background()
	if err := a.presets.Save(ctx, "square", presets.Preset{Width: 500, Height: 500, Output: "png"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.run(ctx, []string{"presets"}); err != nil {
		t.Fatalf("presets: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "square" {
		t.Fatalf("presets list mismatch: %q", stdout.String())
	}
	stdout.Reset()
	if err := a.run(ctx, []string{"presets", "square"}); err != nil {
		t.Fatalf("presets show: %v", err)
	}
	if !strings.Contains(stdout.String(), "width: 500") {
		t.Fatalf("presets show mismatch: %q", stdout.String())
	}
}
