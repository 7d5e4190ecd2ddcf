// Package presets remembers composition settings between sessions in a small
// YAML file. The command line consults it before invoking the core.
package presets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
	"mediatools/internal/storage"
)

// LastUsed is the name under which the most recent settings are kept.
const LastUsed = "last"

// Preset is the serialized form of a compositing run's settings.
type Preset struct {
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	Padding          int    `yaml:"padding"`
	Trim             bool   `yaml:"trim"`
	Output           string `yaml:"output"`
	Quality          int    `yaml:"quality,omitempty"`
	Background       string `yaml:"background,omitempty"`
	Naming           string `yaml:"naming,omitempty"`
	BaseName         string `yaml:"base_name,omitempty"`
	Separator        string `yaml:"separator,omitempty"`
	IncludeOriginals bool   `yaml:"include_originals,omitempty"`
}

type document struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Store reads and writes presets in one YAML file.
type Store struct {
	mu    sync.Mutex
	files *storage.FileStore
	key   string
}

// NewStore opens the preset file at path. The file is created on first Save.
func NewStore(path string) (*Store, error) {
	files, err := storage.NewFileStore(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return &Store{files: files, key: filepath.Base(path)}, nil
}

func (s *Store) read(ctx context.Context) (document, error) {
	doc := document{Presets: map[string]Preset{}}
	data, err := s.files.Read(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("presets: parse %s: %w", s.key, err)
	}
	if doc.Presets == nil {
		doc.Presets = map[string]Preset{}
	}
	return doc, nil
}

// Load returns the preset called name.
func (s *Store) Load(ctx context.Context, name string) (Preset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(ctx)
	if err != nil {
		return Preset{}, false, err
	}
	p, ok := doc.Presets[name]
	return p, ok, nil
}

// Save stores p under name, replacing any previous value.
func (s *Store) Save(ctx context.Context, name string, p Preset) error {
	if name == "" {
		return errors.New("presets: name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(ctx)
	if err != nil {
		return err
	}
	doc.Presets[name] = p
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("presets: encode: %w", err)
	}
	_, err = s.files.Write(ctx, s.key, data)
	return err
}

// Names lists the stored presets alphabetically.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Presets))
	for name := range doc.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FromSettings captures s and bg. Watermarks are not remembered.
func FromSettings(s compose.Settings, bg raster.Background) Preset {
	p := Preset{
		Width:            s.Width,
		Height:           s.Height,
		Padding:          s.Padding,
		Trim:             s.Trim,
		Output:           string(s.OutputFormat()),
		Quality:          s.Quality,
		Naming:           string(s.Naming.Mode),
		BaseName:         s.Naming.Base,
		Separator:        s.Naming.Separator,
		IncludeOriginals: s.IncludeOriginals,
	}
	if s.Archive {
		p.Output = compose.OutputArchive
	}
	if bg != nil {
		p.Background = raster.FormatBackground(bg)
	}
	return p
}

// Settings converts p back into composition settings and its background.
func (p Preset) Settings() (compose.Settings, raster.Background, error) {
	s := compose.Settings{
		Width:            p.Width,
		Height:           p.Height,
		Padding:          p.Padding,
		Trim:             p.Trim,
		Quality:          p.Quality,
		IncludeOriginals: p.IncludeOriginals,
		Naming: compose.NamingPolicy{
			Mode:      compose.NamingMode(p.Naming),
			Base:      p.BaseName,
			Separator: p.Separator,
		},
	}
	if p.Output != "" {
		if err := s.ParseOutput(p.Output); err != nil {
			return s, nil, err
		}
	}
	var bg raster.Background
	if p.Background != "" {
		parsed, err := raster.ParseBackground(p.Background)
		if err != nil {
			return s, nil, &compose.ValidationError{Field: "background", Reason: err.Error()}
		}
		bg = parsed
	}
	return s, bg, nil
}
