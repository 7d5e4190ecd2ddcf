package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"mediatools/internal/compose"
	"mediatools/internal/psd"
	"mediatools/internal/raster"
)

func (a *app) runPSD(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("psd", pflag.ContinueOnError)
	width := fs.Int("width", 1080, "canvas width in pixels")
	height := fs.Int("height", 1080, "canvas height in pixels")
	padding := fs.Int("padding", 0, "space kept free around the product")
	trim := fs.Bool("trim", false, "crop transparent borders before fitting")
	bgColor := fs.String("background-color", "#ffffff", "color of the bottom layer")
	bgImage := fs.String("background-image", "", "photo placed above the color layer")
	preview := fs.Bool("preview", false, "also write the flattened preview as png")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &compose.ValidationError{Field: "input", Reason: "psd takes exactly one product image"}
	}
	fg, err := readSource(fs.Arg(0))
	if err != nil {
		return err
	}
	c, err := raster.ParseColor(*bgColor)
	if err != nil {
		return &compose.ValidationError{Field: "background color", Reason: err.Error()}
	}
	req := psd.EmitRequest{
		Settings: compose.Settings{
			Width:        *width,
			Height:       *height,
			Padding:      *padding,
			Trim:         *trim,
			MaxDimension: a.cfg.MaxDimension,
		},
		Foreground:      fg,
		BackgroundColor: c,
	}
	if *bgImage != "" {
		src, err := readSource(*bgImage)
		if err != nil {
			return err
		}
		req.BackgroundImage = &src
	}

	em, err := psd.Emit(req)
	if err != nil {
		return err
	}
	name := compose.SmartName(fg.Name)
	key, err := a.persist(ctx, name+".psd", mimePSD, em.Data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, filepath.Join(a.store.BasePath(), filepath.FromSlash(key)))
	if *preview {
		var buf bytes.Buffer
		if err := raster.Encode(&buf, em.Preview, raster.FormatPNG, 0); err != nil {
			return err
		}
		key, err := a.persist(ctx, name+"-preview.png", raster.FormatPNG.MIME(), buf.Bytes())
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, filepath.Join(a.store.BasePath(), filepath.FromSlash(key)))
	}
	return nil
}

func (a *app) runPresets(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("presets", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		names, err := a.presets.Names(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(a.stdout, name)
		}
		return nil
	}
	p, ok, err := a.presets.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if !ok {
		return &compose.ValidationError{Field: "preset", Reason: fmt.Sprintf("%q not found", fs.Arg(0))}
	}
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
