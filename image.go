package meme

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/k1LoW/errors"
	_ "golang.org/x/image/webp"
)

type MIMEType string

const (
	MIMETypeImagePNG  MIMEType = "image/png"
	MIMETypeImageJPEG MIMEType = "image/jpeg"
	MIMETypeImageGIF  MIMEType = "image/gif"
	MIMETypeImageWebP MIMEType = "image/webp"
	MIMETypeImageBMP  MIMEType = "image/bmp"
	MIMETypeImageTIFF MIMEType = "image/tiff"
)

// stdinSource is the path that makes NewImage read from standard input.
const stdinSource = "-"

// Image is a decoded source image. It is immutable once created.
type Image struct {
	i        image.Image
	b        []byte // Raw image data
	mimeType MIMEType
	url      string    // path or URL the image was loaded from
	checksum uint32    // Checksum for the image data
	modTime  time.Time // Modification time of the image file, if applicable

	mu    sync.Mutex
	pHash *goimagehash.ImageHash // Perceptual hash, computed on demand
}

// NewImage loads and decodes an image from a local path, an http(s) URL, or "-" for stdin.
func NewImage(ctx context.Context, pathOrURL string) (*Image, error) {
	return newImage(ctx, defaultHTTPClient(), pathOrURL)
}

// NewImageFromReader decodes an image from r.
func NewImageFromReader(ctx context.Context, r io.Reader) (_ *Image, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	return newImageFromBuffer(ctx, r)
}

func newImage(ctx context.Context, client *http.Client, pathOrURL string) (_ *Image, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	var b io.Reader
	var modTime time.Time
	switch {
	case pathOrURL == stdinSource:
		b = os.Stdin
	case isRemote(pathOrURL):
		if i, ok := LoadImageCache(pathOrURL); ok {
			return i, nil
		}
		if _, err := url.Parse(pathOrURL); err != nil {
			return nil, fmt.Errorf("invalid URL %s: %w", pathOrURL, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image from URL %s: %w", pathOrURL, err)
		}
		req.Header.Set("User-Agent", userAgent)
		res, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image from URL %s: %w", pathOrURL, err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch image from URL %s: status code %d", pathOrURL, res.StatusCode)
		}
		b = res.Body
	default:
		fi, err := os.Stat(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to stat image file %s: %w", pathOrURL, err)
		}
		modTime = fi.ModTime()
		if i, ok := LoadImageCache(pathOrURL); ok && modTime.Equal(i.modTime) {
			return i, nil
		}
		file, err := os.Open(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open image file %s: %w", pathOrURL, err)
		}
		defer file.Close()
		b = file
	}
	i, err := newImageFromBuffer(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", pathOrURL, err)
	}
	i.url = pathOrURL
	i.modTime = modTime
	if pathOrURL != stdinSource {
		StoreImageCache(pathOrURL, i)
	}
	return i, nil
}

func newImageFromBuffer(ctx context.Context, r io.Reader) (*Image, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	mt, err := formatToMIMEType(format)
	if err != nil {
		return nil, err
	}
	// Browsers honour the EXIF orientation of JPEG images when decoding.
	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Image{
		i:        img,
		b:        b,
		mimeType: mt,
		checksum: crc32.ChecksumIEEE(b),
	}, nil
}

func formatToMIMEType(format string) (MIMEType, error) {
	switch format {
	case "png":
		return MIMETypeImagePNG, nil
	case "jpeg":
		return MIMETypeImageJPEG, nil
	case "gif":
		return MIMETypeImageGIF, nil
	case "webp":
		return MIMETypeImageWebP, nil
	case "bmp":
		return MIMETypeImageBMP, nil
	case "tiff":
		return MIMETypeImageTIFF, nil
	default:
		return "", fmt.Errorf("%w: unsupported image format %s", ErrDecode, format)
	}
}

// Image returns the decoded bitmap.
func (i *Image) Image() image.Image {
	if i == nil {
		return nil
	}
	return i.i
}

func (i *Image) Width() int {
	if i == nil {
		return 0
	}
	return i.i.Bounds().Dx()
}

func (i *Image) Height() int {
	if i == nil {
		return 0
	}
	return i.i.Bounds().Dy()
}

func (i *Image) MIMEType() MIMEType {
	if i == nil {
		return ""
	}
	return i.mimeType
}

// Format returns the short format name such as "png" or "jpeg".
func (i *Image) Format() string {
	return strings.TrimPrefix(string(i.MIMEType()), "image/")
}

// Source returns the path or URL the image was loaded from.
func (i *Image) Source() string {
	if i == nil {
		return ""
	}
	return i.url
}

func (i *Image) Bytes() []byte {
	if i == nil {
		return nil
	}
	return i.b
}

func (i *Image) Checksum() uint32 {
	if i == nil {
		return 0
	}
	return i.checksum
}

// Same reports whether both images were decoded from identical bytes.
func (i *Image) Same(ii *Image) bool {
	if i == nil || ii == nil {
		return false
	}
	return i.mimeType == ii.mimeType && i.Checksum() == ii.Checksum()
}

func (i *Image) PHash() (_ *goimagehash.ImageHash, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	if i == nil {
		return nil, fmt.Errorf("image is nil")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pHash == nil {
		pHash, err := goimagehash.PerceptionHash(i.i)
		if err != nil {
			return nil, fmt.Errorf("failed to compute perceptual hash: %w", err)
		}
		i.pHash = pHash
	}
	return i.pHash, nil
}

// Distance returns the perceptual hash distance between two images.
// 0 means the images look the same.
func (i *Image) Distance(ii *Image) (_ int, err error) {
	defer func() {
		err = errors.WithStack(err)
	}()
	aHash, err := i.PHash()
	if err != nil {
		return 0, err
	}
	bHash, err := ii.PHash()
	if err != nil {
		return 0, err
	}
	return aHash.Distance(bHash)
}
