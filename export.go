package meme

import (
	"fmt"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/k1LoW/errors"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Format is an export format.
type Format string

const (
	// FormatWebP is the lossy sticker export.
	FormatWebP Format = "webp"
	// FormatPNG is the lossless export.
	FormatPNG Format = "png"
)

// webpQuality is the lossy export quality (0.8 on a 0-1 scale).
const webpQuality = 80

// Formats lists every supported export format.
var Formats = []Format{FormatWebP, FormatPNG}

// ParseFormat parses "webp" or "png".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatWebP:
		return FormatWebP, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

func (f Format) MIMEType() MIMEType {
	switch f {
	case FormatWebP:
		return MIMETypeImageWebP
	case FormatPNG:
		return MIMETypeImagePNG
	default:
		return ""
	}
}

// Filename returns the download name for an export made at t:
// meme-sticker-<unix ms>.webp or meme-<unix ms>.png.
func Filename(f Format, t time.Time) string {
	switch f {
	case FormatWebP:
		return fmt.Sprintf("meme-sticker-%d.webp", t.UnixMilli())
	default:
		return fmt.Sprintf("meme-%d.%s", t.UnixMilli(), f)
	}
}

// Encode writes the composited surface to w in the given format.
func Encode(w io.Writer, s *Surface, f Format) (err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if s == nil {
		return ErrNoImage
	}
	switch f {
	case FormatWebP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
		if err != nil {
			return fmt.Errorf("failed to create webp encoder options: %w", err)
		}
		if err := webp.Encode(w, s.Image(), options); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, s.Image()); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return nil
}

// Exported describes a finished export.
type Exported struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Format   Format `json:"format"`
	Size     int    `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
