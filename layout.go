package meme

import (
	"math"
)

const (
	// StickerSize is the width and height of the sticker canvas.
	StickerSize = 512
	// MaxWidth is the widest canvas produced outside sticker mode.
	MaxWidth = 1200
	// CaptionPadding is the distance between a caption and the nearest horizontal edge.
	CaptionPadding = 20
	// MinStrokeWidth is the thinnest caption outline.
	MinStrokeWidth = 2

	strokeDivisor = 15
)

// Rect is a rectangle in surface coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CaptionAnchors are the reference points captions are drawn at.
// Top is where the top edge of the top caption's em box sits,
// Bottom is where the bottom edge of the bottom caption's em box sits.
type CaptionAnchors struct {
	X      float64 `json:"x"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Layout is the geometry of one render.
type Layout struct {
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Sticker   bool           `json:"sticker"`
	Placement Rect           `json:"placement"`
	Scale     float64        `json:"scale,omitempty"` // contain scale, sticker mode only
	Stroke    float64        `json:"stroke"`
	Captions  CaptionAnchors `json:"captions"`
}

// PlanLayout computes the surface size, the image placement and the caption anchors
// for an image of imgW x imgH rendered with cfg.
func PlanLayout(imgW, imgH int, cfg RenderConfig) Layout {
	w, h := SurfaceSize(imgW, imgH, cfg.Sticker)
	l := Layout{
		Width:   w,
		Height:  h,
		Sticker: cfg.Sticker,
		Stroke:  StrokeWidth(cfg.FontSize),
		Captions: CaptionAnchors{
			X:      float64(w) / 2,
			Top:    CaptionPadding,
			Bottom: float64(h) - CaptionPadding,
		},
	}
	if cfg.Sticker {
		l.Placement, l.Scale = ContainPlacement(w, h, imgW, imgH)
	} else {
		// Outside sticker mode the image is stretched to the surface and its aspect ratio
		// is not preserved.
		l.Placement = Rect{Width: float64(w), Height: float64(h)}
	}
	return l
}

// SurfaceSize returns the canvas size for an image of imgW x imgH.
// Sticker mode is always 512x512. Otherwise the native size is kept,
// scaled down proportionally when wider than MaxWidth. Images are never scaled up.
func SurfaceSize(imgW, imgH int, sticker bool) (int, int) {
	if sticker {
		return StickerSize, StickerSize
	}
	if imgW <= MaxWidth {
		return imgW, imgH
	}
	// Canvas dimensions are integers; the fractional part of the height is truncated.
	h := int(float64(imgH) / float64(imgW) * MaxWidth)
	return MaxWidth, max(1, h)
}

// ContainPlacement fits an image of imgW x imgH inside a surface of surfW x surfH
// with a uniform scale, centred, and returns the destination rectangle and the scale.
func ContainPlacement(surfW, surfH, imgW, imgH int) (Rect, float64) {
	if imgW <= 0 || imgH <= 0 {
		return Rect{}, 0
	}
	scale := math.Min(float64(surfW)/float64(imgW), float64(surfH)/float64(imgH))
	w := float64(imgW) * scale
	h := float64(imgH) * scale
	return Rect{
		X:      float64(surfW)/2 - w/2,
		Y:      float64(surfH)/2 - h/2,
		Width:  w,
		Height: h,
	}, scale
}

// StrokeWidth returns the caption outline width for a font size.
func StrokeWidth(fontSize float64) float64 {
	return math.Max(MinStrokeWidth, fontSize/strokeDivisor)
}
