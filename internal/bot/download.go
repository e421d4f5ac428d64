package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/rs/zerolog/log"
)

// DefaultDownloadTimeout is the default timeout for image downloads
const DefaultDownloadTimeout = 30 * time.Second

// ImageDownloader fetches user uploads from Telegram's file servers.
type ImageDownloader struct {
	client  *resty.Client
	maxSize int64
}

// NewImageDownloader creates a downloader enforcing maxSize bytes.
func NewImageDownloader(maxSize int64) *ImageDownloader {
	if maxSize <= 0 {
		maxSize = imaging.DefaultMaxBytes
	}
	return &ImageDownloader{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultDownloadTimeout),
		maxSize: maxSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (d *ImageDownloader) WithTimeout(timeout time.Duration) *ImageDownloader {
	d.client.SetTimeout(timeout)
	return d
}

// DownloadFromURL downloads image data from a URL. A body larger than the
// size limit yields an error wrapping imaging.ErrTooLarge.
func (d *ImageDownloader) DownloadFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	res, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		return nil, fmt.Errorf("%w: content type %s", imaging.ErrUnsupportedFormat, contentType)
	}

	if err := imaging.CheckSize(res.RawResponse.ContentLength, d.maxSize); err != nil {
		return nil, err
	}

	// Content-Length may be missing or wrong, so read one byte past the limit.
	data, err := io.ReadAll(io.LimitReader(body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if err := imaging.CheckSize(int64(len(data)), d.maxSize); err != nil {
		return nil, err
	}

	return data, nil
}

// DownloadFromTelegramFileID downloads an image from Telegram using a file ID.
// It uses the provided function to resolve the file ID to a direct URL.
func (d *ImageDownloader) DownloadFromTelegramFileID(
	ctx context.Context,
	getFileDirectURL func(fileID string) (string, error),
	fileID string,
) ([]byte, error) {
	log.Debug().Str("fileID", fileID).Msg("downloading telegram file")

	url, err := getFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}

	return d.DownloadFromURL(ctx, url)
}
