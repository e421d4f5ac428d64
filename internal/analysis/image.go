package analysis

import (
	"errors"

	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
)

// ImageError wraps an upload validation failure in its failure kind.
func ImageError(err error) *Error {
	if errors.Is(err, imaging.ErrTooLarge) {
		return fail(KindImageTooLarge, err)
	}
	return fail(KindInvalidImage, err)
}

// PrepareImage validates an uploaded image and normalizes it for inference.
func PrepareImage(data []byte, maxBytes int64) (llm.Image, error) {
	if _, err := imaging.Validate(data, maxBytes); err != nil {
		return llm.Image{}, ImageError(err)
	}
	normalized, mimeType, err := imaging.Normalize(data)
	if err != nil {
		return llm.Image{}, ImageError(err)
	}
	return llm.Image{Data: normalized, MIMEType: mimeType}, nil
}
