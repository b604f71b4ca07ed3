package meme

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/k1LoW/errors"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultFontSize = 40
	DefaultColor    = "#ffffff"
)

// Captions is the top and bottom caption pair. Empty captions are not drawn.
type Captions struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// RenderConfig holds the user adjustable render settings.
type RenderConfig struct {
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
	Sticker  bool    `json:"sticker"`
}

// DefaultRenderConfig returns the settings used when nothing else is configured.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		FontSize: DefaultFontSize,
		Color:    DefaultColor,
	}
}

// Validate reports whether the settings can be rendered.
func (c RenderConfig) Validate() error {
	if c.FontSize <= 0 || math.IsNaN(c.FontSize) || math.IsInf(c.FontSize, 0) {
		return fmt.Errorf("invalid font size: %v", c.FontSize)
	}
	if _, err := ParseColor(c.Color); err != nil {
		return err
	}
	return nil
}

// Snapshot is everything a render depends on.
type Snapshot struct {
	Image    *Image
	Captions Captions
	Config   RenderConfig
}

// Surface is a rendered canvas.
type Surface struct {
	img    *image.RGBA
	layout Layout
}

// Image returns the composited pixels.
func (s *Surface) Image() image.Image {
	return s.img
}

func (s *Surface) Layout() Layout {
	return s.layout
}

func (s *Surface) Width() int {
	return s.layout.Width
}

func (s *Surface) Height() int {
	return s.layout.Height
}

// Render paints a new surface from s. Every call starts from a cleared canvas.
func Render(s Snapshot, fonts *FontSet) (_ *Surface, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if s.Image == nil {
		return nil, ErrNoImage
	}
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	fill, err := ParseColor(s.Config.Color)
	if err != nil {
		return nil, err
	}
	layout := PlanLayout(s.Image.Width(), s.Image.Height(), s.Config)

	// A new context is fully transparent, so margins left by the contain fit stay transparent.
	dc := gg.NewContext(layout.Width, layout.Height)
	drawSource(dc, s.Image.Image(), layout.Placement)

	top := strings.ToUpper(s.Captions.Top)
	bottom := strings.ToUpper(s.Captions.Bottom)
	if top != "" || bottom != "" {
		if fonts == nil {
			fonts = NewFontSet(nil)
		}
		face, err := fonts.Face(s.Config.FontSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		dc.SetFontFace(face)
		m := face.Metrics()
		ascent := float64(m.Ascent) / 64
		descent := float64(m.Descent) / 64
		if top != "" {
			drawCaption(dc, top, layout.Captions.X, layout.Captions.Top+ascent, layout.Stroke, fill)
		}
		if bottom != "" {
			drawCaption(dc, bottom, layout.Captions.X, layout.Captions.Bottom-descent, layout.Stroke, fill)
		}
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected surface type %T", dc.Image())
	}
	return &Surface{
		img:    img,
		layout: layout,
	}, nil
}

// drawSource draws src at the size of r, centred on the surface. When the free space is
// odd the extra pixel goes to the right and bottom margins.
func drawSource(dc *gg.Context, src image.Image, r Rect) {
	w := max(1, int(math.Round(r.Width)))
	h := max(1, int(math.Round(r.Height)))
	scaled := src
	if b := src.Bounds(); b.Min != (image.Point{}) || b.Dx() != w || b.Dy() != h {
		scaled = imaging.Resize(src, w, h, imaging.Lanczos)
	}
	dc.DrawImage(scaled, (dc.Width()-w)/2, (dc.Height()-h)/2)
}

// drawCaption draws text centred on x with its baseline at y: a black outline of
// the given stroke width first, then the fill on top.
func drawCaption(dc *gg.Context, text string, x, baseline, stroke float64, fill color.Color) {
	dc.SetColor(color.Black)
	for _, o := range strokeOffsets(stroke / 2) {
		dc.DrawStringAnchored(text, x+o.X, baseline+o.Y, 0.5, 0)
	}
	dc.SetColor(fill)
	dc.DrawStringAnchored(text, x, baseline, 0.5, 0)
}

// strokeOffsets returns the offsets that stamp a glyph run into an outline of radius r
// with round joins: every whole-pixel offset inside the disc plus points on its rim.
func strokeOffsets(r float64) []gg.Point {
	var pts []gg.Point
	n := int(math.Ceil(r))
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if float64(dx*dx+dy*dy) <= r*r {
				pts = append(pts, gg.Point{X: float64(dx), Y: float64(dy)})
			}
		}
	}
	rim := max(8, int(math.Ceil(2*math.Pi*r)))
	for i := range rim {
		a := 2 * math.Pi * float64(i) / float64(rim)
		pts = append(pts, gg.Point{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}
	return pts
}

// ParseColor parses a CSS hex color such as "#fff" or "#ffcc00".
func ParseColor(s string) (color.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
