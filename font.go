package meme

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/k1LoW/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FamilySansSerif is the generic family that always resolves to the embedded Go Bold face.
const FamilySansSerif = "sans-serif"

// DefaultFontFamilies is the caption font fallback list: a display face, a generic bold, then sans-serif.
var DefaultFontFamilies = []string{"Impact", "Arial Black", FamilySansSerif}

// file name stems for families whose files are not named after the family.
var familyFileNames = map[string][]string{
	"arialblack": {"ariblk", "arialblk"},
}

// FontSet resolves the first available family of a prioritized fallback list and
// creates faces from it. Parsed fonts are cached; faces are created per call.
type FontSet struct {
	families []string
	dirs     []string

	once   sync.Once
	name   string
	parsed *opentype.Font
	err    error
}

// NewFontSet creates a FontSet. families may contain family names, paths to font files
// or "sans-serif". dirs are searched in addition to the platform font directories.
func NewFontSet(families []string, dirs ...string) *FontSet {
	if len(families) == 0 {
		families = DefaultFontFamilies
	}
	return &FontSet{
		families: families,
		dirs:     append(append([]string{}, dirs...), systemFontDirs()...),
	}
}

// Resolved returns the family (or file) that was picked and the error, if any, from resolving.
func (f *FontSet) Resolved() (string, error) {
	f.resolve()
	return f.name, f.err
}

// Face returns a face of the resolved font at size pixels.
func (f *FontSet) Face(size float64) (_ font.Face, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	f.resolve()
	if f.err != nil {
		return nil, f.err
	}
	face, err := opentype.NewFace(f.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72, // 1pt == 1px
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face at %.1fpx: %w", size, err)
	}
	return face, nil
}

func (f *FontSet) resolve() {
	f.once.Do(func() {
		for _, family := range f.families {
			name, b, ok := f.lookup(family)
			if !ok {
				continue
			}
			parsed, err := opentype.Parse(b)
			if err != nil {
				continue
			}
			f.name = name
			f.parsed = parsed
			return
		}
		f.err = fmt.Errorf("no usable font found in %s", strings.Join(f.families, ", "))
	})
}

func (f *FontSet) lookup(family string) (string, []byte, bool) {
	if strings.EqualFold(family, FamilySansSerif) {
		return FamilySansSerif, gobold.TTF, true
	}
	if isFontFile(family) {
		b, err := os.ReadFile(family)
		if err != nil {
			return "", nil, false
		}
		return family, b, true
	}
	path, ok := findFontFile(f.dirs, family)
	if !ok {
		return "", nil, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", nil, false
	}
	return family, b, true
}

// findFontFile walks dirs for a file whose name matches family.
func findFontFile(dirs []string, family string) (string, bool) {
	key := normalizeFamily(family)
	candidates := append([]string{key}, familyFileNames[key]...)
	var found string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isFontFile(path) {
				return nil
			}
			stem := normalizeFamily(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
			for _, c := range candidates {
				if stem == normalizeFamily(c) {
					found = path
					return fs.SkipAll
				}
			}
			return nil
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func normalizeFamily(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
}

func isFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

func systemFontDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{
			filepath.Join(home, "Library", "Fonts"),
			"/Library/Fonts",
			"/System/Library/Fonts",
			"/System/Library/Fonts/Supplemental",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("WINDIR"), "Fonts"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Microsoft", "Windows", "Fonts"),
		}
	default:
		return []string{
			filepath.Join(home, ".local", "share", "fonts"),
			filepath.Join(home, ".fonts"),
			"/usr/local/share/fonts",
			"/usr/share/fonts",
		}
	}
}
