package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFromTelegramFileID_Success(t *testing.T) {
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/foo.jpeg" {
			handlerCalled = true
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("123"))
		} else {
			t.Errorf("invalid request to test server: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	getFileDirectURL := func(fileID string) (string, error) {
		return fmt.Sprintf("%s/%s.jpeg", ts.URL, fileID), nil
	}

	data, err := NewImageDownloader(0).DownloadFromTelegramFileID(context.Background(), getFileDirectURL, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), data)
	assert.True(t, handlerCalled)
}

func TestDownloadFromTelegramFileID_URLResolutionError(t *testing.T) {
	getFileDirectURL := func(fileID string) (string, error) {
		return "", fmt.Errorf("failed to get URL")
	}

	_, err := NewImageDownloader(0).DownloadFromTelegramFileID(context.Background(), getFileDirectURL, "test-file-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get file URL")
}

func TestImageDownloader_DownloadFromURL_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewImageDownloader(0).DownloadFromURL(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestImageDownloader_DownloadFromURL_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been canceled")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImageDownloader(0).DownloadFromURL(ctx, ts.URL)
	assert.Error(t, err)
}

func TestImageDownloader_DownloadFromURL_SizeLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		// Chunked encoding hides the length from the client.
		w.(http.Flusher).Flush()
		w.Write(make([]byte, 100))
	}))
	defer ts.Close()

	_, err := NewImageDownloader(50).DownloadFromURL(context.Background(), ts.URL)
	assert.ErrorIs(t, err, imaging.ErrTooLarge)
}

func TestImageDownloader_DownloadFromURL_ContentLengthExceedsLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "999999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewImageDownloader(1000).DownloadFromURL(context.Background(), ts.URL)
	assert.ErrorIs(t, err, imaging.ErrTooLarge)
}

func TestImageDownloader_DownloadFromURL_InvalidContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer ts.Close()

	_, err := NewImageDownloader(0).DownloadFromURL(context.Background(), ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
	assert.True(t, strings.Contains(err.Error(), "text/html"))
}
