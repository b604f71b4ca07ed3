// Package meme overlays top and bottom captions on an image and exports the composited
// result as PNG or WebP, optionally constrained to a 512x512 sticker canvas.
package meme

import "errors"

var (
	// ErrNoImage is returned when rendering or exporting before an image has been loaded.
	ErrNoImage = errors.New("no image loaded: upload an image first")
	// ErrSuperseded is returned by a load that was replaced by a newer one before it completed.
	ErrSuperseded = errors.New("image load superseded by a newer load")
	// ErrDecode is returned when the given data can not be decoded as an image.
	ErrDecode = errors.New("failed to decode image")
	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// State is the lifecycle state of a Composer.
type State int

const (
	StateEmpty State = iota
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}
