package compose

import (
	"errors"
	"fmt"

	"mediatools/internal/raster"
	"mediatools/internal/watermark"
)

const (
	// DefaultMaxDimension caps the canvas side length.
	DefaultMaxDimension = 8000
	// OutputArchive is the format name that forces a zip result.
	OutputArchive = "zip"
)

var (
	// ErrConfig marks a request rejected before any file was touched.
	ErrConfig = errors.New("invalid configuration")
	// ErrTooLarge marks a canvas or input beyond the supported size; the
	// caller should ask the user to reduce dimensions.
	ErrTooLarge = raster.ErrTooLarge
)

// ValidationError names the setting that failed pre-flight checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("compose: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrConfig }

// Settings is the value object shared by every file of a run.
type Settings struct {
	Width   int
	Height  int
	Padding int
	Trim    bool

	// Format is the raster encoding of each output file.
	Format raster.Format
	// Archive forces a zip result even for a single input.
	Archive bool
	Quality int

	Naming           NamingPolicy
	IncludeOriginals bool
	Watermark        *watermark.Options

	// MaxDimension overrides DefaultMaxDimension when positive.
	MaxDimension int
}

// ParseOutput maps a user facing output name ("png", "jpg", "zip", ...) onto
// the Format and Archive fields.
func (s *Settings) ParseOutput(name string) error {
	if name == OutputArchive {
		s.Archive = true
		if s.Format == "" {
			s.Format = raster.FormatPNG
		}
		return nil
	}
	f, err := raster.ParseFormat(name)
	if err != nil {
		return &ValidationError{Field: "format", Reason: err.Error()}
	}
	s.Format = f
	return nil
}

// Limit returns the effective maximum canvas side.
func (s Settings) Limit() int {
	if s.MaxDimension > 0 {
		return s.MaxDimension
	}
	return DefaultMaxDimension
}

// Validate runs the pre-flight checks. Oversized canvases wrap ErrTooLarge,
// everything else wraps ErrConfig.
func (s Settings) Validate() error {
	if s.Width <= 0 {
		return &ValidationError{Field: "width", Reason: "must be positive"}
	}
	if s.Height <= 0 {
		return &ValidationError{Field: "height", Reason: "must be positive"}
	}
	if limit := s.Limit(); s.Width > limit || s.Height > limit {
		return fmt.Errorf("compose: %dx%d exceeds %dx%d: %w", s.Width, s.Height, limit, limit, ErrTooLarge)
	}
	if s.Padding < 0 {
		return &ValidationError{Field: "padding", Reason: "must not be negative"}
	}
	if 2*s.Padding >= min(s.Width, s.Height) {
		return &ValidationError{Field: "padding", Reason: fmt.Sprintf("%d leaves no drawable area in %dx%d", s.Padding, s.Width, s.Height)}
	}
	if s.Format != "" {
		if _, err := raster.ParseFormat(string(s.Format)); err != nil {
			return &ValidationError{Field: "format", Reason: err.Error()}
		}
	}
	if s.Quality < 0 || s.Quality > 100 {
		return &ValidationError{Field: "quality", Reason: "must be within 1..100"}
	}
	if err := s.Naming.Validate(); err != nil {
		return &ValidationError{Field: "naming", Reason: err.Error()}
	}
	if s.Watermark != nil {
		if err := s.Watermark.Validate(); err != nil {
			return &ValidationError{Field: "watermark", Reason: err.Error()}
		}
	}
	return nil
}

// OutputFormat returns Format, defaulting to PNG.
func (s Settings) OutputFormat() raster.Format {
	if s.Format == "" {
		return raster.FormatPNG
	}
	return s.Format
}
