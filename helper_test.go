package meme

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// gradientImage returns a w x h image whose pixels vary in both directions.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, w-1)),
				G: uint8(y * 255 / max(1, h-1)),
				B: 0x80,
				A: 0xff,
			})
		}
	}
	return img
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestImage(t *testing.T, img image.Image) *Image {
	t.Helper()
	i, err := NewImageFromReader(context.Background(), bytes.NewReader(encodePNG(t, img)))
	if err != nil {
		t.Fatal(err)
	}
	return i
}

func writeTestImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, encodePNG(t, img), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func testFonts() *FontSet {
	return NewFontSet([]string{FamilySansSerif})
}

type savedExport struct {
	name     string
	mimeType string
	data     []byte
}

// recordSink keeps every export in memory.
type recordSink struct {
	mu    sync.Mutex
	saved []savedExport
}

func (s *recordSink) Save(_ context.Context, name, mimeType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedExport{name: name, mimeType: mimeType, data: data})
	return "memory://" + name, nil
}

func (s *recordSink) exports() []savedExport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedExport{}, s.saved...)
}
