package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"mediatools/internal/batch"
	"mediatools/internal/compose"
	"mediatools/internal/presets"
	"mediatools/internal/raster"
	"mediatools/internal/watermark"
)

type composeOptions struct {
	values            presets.Preset
	presetName        string
	savePreset        string
	backgroundImage   string
	requireBackground bool
	unpack            bool
	mark              watermarkFlags
}

type watermarkFlags struct {
	text    string
	image   string
	color   string
	anchor  string
	scale   int
	margin  int
	opacity float64
	tile    bool
}

func newComposeFlags(o *composeOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("compose", pflag.ContinueOnError)
	fs.IntVar(&o.values.Width, "width", 1080, "canvas width in pixels")
	fs.IntVar(&o.values.Height, "height", 1080, "canvas height in pixels")
	fs.IntVar(&o.values.Padding, "padding", 0, "space kept free around the product")
	fs.BoolVar(&o.values.Trim, "trim", false, "crop transparent borders before fitting")
	fs.StringVarP(&o.values.Output, "output", "o", "png", "png, jpg, gif, bmp, tiff or zip")
	fs.IntVar(&o.values.Quality, "quality", 0, "jpeg quality 1-100 (default from MEDIATOOLS_JPEG_QUALITY)")
	fs.StringVar(&o.values.Background, "background", "", `"solid:#fff", "gradient:#a:#b:45" or "pattern:dots:#a:#b:2"`)
	fs.StringVar(&o.values.Naming, "naming", "smart", "smart or literal")
	fs.StringVar(&o.values.BaseName, "base", "", "base name for literal naming")
	fs.StringVar(&o.values.Separator, "separator", "_", "separator for literal naming")
	fs.BoolVar(&o.values.IncludeOriginals, "originals", false, "add the original files to the archive")
	fs.StringVar(&o.presetName, "preset", "", "start from a saved preset")
	fs.StringVar(&o.savePreset, "save-preset", "", "remember these settings under a name")
	fs.StringVar(&o.backgroundImage, "background-image", "", "photo drawn behind every product")
	fs.BoolVar(&o.requireBackground, "require-background", false, "refuse to run without a background")
	fs.BoolVar(&o.unpack, "unpack", false, "write every output file instead of one archive")
	fs.StringVar(&o.mark.text, "watermark-text", "", "text watermark")
	fs.StringVar(&o.mark.image, "watermark-image", "", "image watermark")
	fs.StringVar(&o.mark.color, "watermark-color", "#ffffff", "text watermark color")
	fs.StringVar(&o.mark.anchor, "watermark-anchor", string(watermark.BottomRight), "one of the nine anchors, e.g. top-left or center")
	fs.IntVar(&o.mark.scale, "watermark-scale", 2, "text watermark magnification")
	fs.IntVar(&o.mark.margin, "watermark-margin", 16, "distance from the canvas edge")
	fs.Float64Var(&o.mark.opacity, "watermark-opacity", 0.5, "watermark opacity 0-1")
	fs.BoolVar(&o.mark.tile, "watermark-tile", false, "repeat the watermark across the canvas")
	return fs
}

// resolvePreset starts from the named preset, or the last used one, and
// applies only the flags given on the command line.
func (a *app) resolvePreset(ctx context.Context, fs *pflag.FlagSet, o *composeOptions) (presets.Preset, error) {
	base := presets.Preset{
		Width:      1080,
		Height:     1080,
		Output:     "png",
		Naming:     string(compose.NamingSmart),
		Separator:  "_",
		Background: a.cfg.Background,
	}
	name := o.presetName
	if name == "" {
		name = presets.LastUsed
	}
	stored, ok, err := a.presets.Load(ctx, name)
	if err != nil {
		return base, err
	}
	if !ok && o.presetName != "" {
		return base, &compose.ValidationError{Field: "preset", Reason: fmt.Sprintf("%q not found", o.presetName)}
	}
	if ok {
		base = stored
	}

	v := o.values
	overlay := map[string]func(){
		"width":      func() { base.Width = v.Width },
		"height":     func() { base.Height = v.Height },
		"padding":    func() { base.Padding = v.Padding },
		"trim":       func() { base.Trim = v.Trim },
		"output":     func() { base.Output = v.Output },
		"quality":    func() { base.Quality = v.Quality },
		"background": func() { base.Background = v.Background },
		"naming":     func() { base.Naming = v.Naming },
		"base":       func() { base.BaseName = v.BaseName },
		"separator":  func() { base.Separator = v.Separator },
		"originals":  func() { base.IncludeOriginals = v.IncludeOriginals },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := overlay[f.Name]; ok {
			apply()
		}
	})
	return base, nil
}

func (a *app) runCompose(ctx context.Context, args []string) error {
	var o composeOptions
	fs := newComposeFlags(&o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.resolvePreset(ctx, fs, &o)
	if err != nil {
		return err
	}
	settings, bg, err := p.Settings()
	if err != nil {
		return err
	}
	remembered := presets.FromSettings(settings, bg)
	settings.MaxDimension = a.cfg.MaxDimension
	if settings.Quality == 0 {
		settings.Quality = a.cfg.JPEGQuality
	}
	if settings.Watermark, err = o.mark.options(); err != nil {
		return err
	}

	files, err := readSources(fs.Args())
	if err != nil {
		return err
	}
	req := batch.Request{
		Files:             files,
		Settings:          settings,
		Background:        bg,
		RequireBackground: o.requireBackground,
		OnProgress:        a.logProgress,
	}
	if o.backgroundImage != "" {
		src, err := readSource(o.backgroundImage)
		if err != nil {
			return err
		}
		req.BackgroundImage = &src
	}

	res, err := a.orchestrator.Run(ctx, req)
	if res != nil {
		a.reportFailures(res)
	}
	if err != nil {
		return err
	}
	if err := a.persistResult(ctx, res, o.unpack); err != nil {
		return err
	}

	// Settings are remembered only after a run that produced output.
	if err := a.presets.Save(ctx, presets.LastUsed, remembered); err != nil {
		a.logger.Warn().Err(err).Msg("mediatools: remember settings failed")
	}
	if o.savePreset != "" {
		if err := a.presets.Save(ctx, o.savePreset, remembered); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runConvert(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	to := fs.String("to", "png", "png, jpg, gif, bmp or tiff")
	quality := fs.Int("quality", a.cfg.JPEGQuality, "jpeg quality 1-100")
	archive := fs.Bool("zip", false, "always return a zip archive")
	unpack := fs.Bool("unpack", false, "write every output file instead of one archive")
	naming := fs.String("naming", "smart", "smart or literal")
	base := fs.String("base", "", "base name for literal naming")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files, err := readSources(fs.Args())
	if err != nil {
		return err
	}
	res, err := a.orchestrator.Convert(ctx, batch.ConvertRequest{
		Files:      files,
		Format:     raster.Format(*to),
		Quality:    *quality,
		Archive:    *archive,
		Naming:     compose.NamingPolicy{Mode: compose.NamingMode(*naming), Base: *base},
		OnProgress: a.logProgress,
	})
	if res != nil {
		a.reportFailures(res)
	}
	if err != nil {
		return err
	}
	return a.persistResult(ctx, res, *unpack)
}

func (w watermarkFlags) options() (*watermark.Options, error) {
	if w.text == "" && w.image == "" {
		return nil, nil
	}
	o := &watermark.Options{
		Text:    w.text,
		Scale:   w.scale,
		Anchor:  watermark.Anchor(w.anchor),
		Margin:  w.margin,
		Opacity: w.opacity,
		Tile:    w.tile,
	}
	if w.text != "" {
		c, err := raster.ParseColor(w.color)
		if err != nil {
			return nil, &compose.ValidationError{Field: "watermark", Reason: err.Error()}
		}
		o.Color = c
	}
	if w.image != "" {
		src, err := readSource(w.image)
		if err != nil {
			return nil, err
		}
		h, err := raster.Load(src)
		if err != nil {
			return nil, &compose.ValidationError{Field: "watermark", Reason: err.Error()}
		}
		o.Image = raster.Clone(h.Image())
		h.Release()
	}
	return o, nil
}

func readSources(paths []string) ([]raster.Source, error) {
	if len(paths) == 0 {
		return nil, batch.ErrNoFiles
	}
	files := make([]raster.Source, 0, len(paths))
	for _, p := range paths {
		src, err := readSource(p)
		if err != nil {
			return nil, err
		}
		files = append(files, src)
	}
	return files, nil
}

func readSource(path string) (raster.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raster.Source{}, &compose.ValidationError{Field: "input", Reason: err.Error()}
		}
		return raster.Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return raster.Source{Name: filepath.Base(path), Data: data}, nil
}

func (a *app) logProgress(p batch.Progress) {
	a.logger.Info().
		Int("percent", p.Percent).
		Int("processed", p.Processed).
		Int("total", p.Total).
		Msg("mediatools: progress")
}

func (a *app) reportFailures(res *batch.Result) {
	for _, f := range res.Failures {
		a.logger.Warn().Err(f.Err).Str("file", f.Name).Msg("mediatools: file skipped")
	}
	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(a.stdout, "%d of %d files failed: %v\n", n, res.Total, res.FailedNames())
	}
}
