// Package imaging validates uploaded photos and normalizes them before they are
// sent for inference.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the upload ceiling.
const DefaultMaxBytes = 16 << 20

// MaxWidth is the width normalized images are scaled down to.
const MaxWidth = 1024

const jpegQuality = 90

var (
	ErrTooLarge          = errors.New("image too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

var formatMIMETypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// CheckSize returns ErrTooLarge when size exceeds maxBytes. A non-positive
// maxBytes disables the check.
func CheckSize(size int64, maxBytes int64) error {
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, size, maxBytes)
	}
	return nil
}

// Validate checks the size of data and identifies its format from the header.
// It returns the MIME type of a supported raster format.
func Validate(data []byte, maxBytes int64) (string, error) {
	if err := CheckSize(int64(len(data)), maxBytes); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrUnsupportedFormat)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mimeType, ok := formatMIMETypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return mimeType, nil
}

// Normalize decodes data, scales it down to at most MaxWidth pixels wide and
// re-encodes it as JPEG. Smaller JPEGs are returned unchanged.
func Normalize(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bounds := img.Bounds()
	if format == "jpeg" && bounds.Dx() <= MaxWidth {
		return data, "image/jpeg", nil
	}

	// JPEG has no alpha channel, so transparent areas are flattened onto white.
	width, height := bounds.Dx(), bounds.Dy()
	if width > MaxWidth {
		height = max(height*MaxWidth/width, 1)
		width = MaxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if width == bounds.Dx() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
