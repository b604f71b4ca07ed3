package meme

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/k1LoW/errors"
)

// File is a composition described in YAML, as used by `meme watch`.
//
//	image: ./cat.jpg
//	top: when the build passes
//	bottom: on the first try
//	fontSize: 56
//	color: "#ffffff"
//	sticker: false
type File struct {
	Image    string   `yaml:"image"`
	Top      string   `yaml:"top,omitempty"`
	Bottom   string   `yaml:"bottom,omitempty"`
	FontSize *float64 `yaml:"fontSize,omitempty"`
	Color    string   `yaml:"color,omitempty"`
	Sticker  *bool    `yaml:"sticker,omitempty"`
}

// ParseFile reads a meme file. A relative image path is resolved against the file's directory.
func ParseFile(path string) (_ *File, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read meme file %s: %w", path, err)
	}
	f := &File{}
	if err := yaml.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("failed to parse meme file %s: %w", path, err)
	}
	if f.Image == "" {
		return nil, fmt.Errorf("meme file %s has no image", path)
	}
	if !isRemote(f.Image) && f.Image != stdinSource && !filepath.IsAbs(f.Image) {
		f.Image = filepath.Join(filepath.Dir(path), f.Image)
	}
	return f, nil
}

// Captions returns the caption pair of the file.
func (f *File) Captions() Captions {
	return Captions{Top: f.Top, Bottom: f.Bottom}
}

// Apply overlays the settings present in the file on base.
func (f *File) Apply(base RenderConfig) RenderConfig {
	if f.FontSize != nil {
		base.FontSize = *f.FontSize
	}
	if f.Color != "" {
		base.Color = f.Color
	}
	if f.Sticker != nil {
		base.Sticker = *f.Sticker
	}
	return base
}

func isRemote(pathOrURL string) bool {
	return strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
}
