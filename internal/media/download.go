package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/httpclient"
)

// ErrFileNotFound marks a local image source that does not exist. Callers
// treat it as a fast failure: nothing remote was touched.
var ErrFileNotFound = errors.New("image file not found")

var (
	driveFilePattern = regexp.MustCompile(`drive\.google\.com/file/d/([^/]+)`)
	driveOpenPattern = regexp.MustCompile(`drive\.google\.com/open\?id=([^&]+)`)
)

// Downloader resolves an image source into a local file ready for upload.
// Sources may be local paths, direct URLs or cloud-storage share links.
type Downloader struct {
	client  *http.Client
	retries int
	tempDir string
	logger  arbor.ILogger
}

// NewDownloader creates a downloader bounded by the publish configuration.
func NewDownloader(cfg common.PublishConfig, logger arbor.ILogger) *Downloader {
	return NewDownloaderWithClient(cfg, httpclient.NewDefaultHTTPClient(cfg.DownloadTimeout), logger)
}

// NewDownloaderWithClient creates a downloader on a caller-supplied client,
// typically one carrying the platform session cookies so downloads behind
// the platform's own authentication succeed.
func NewDownloaderWithClient(cfg common.PublishConfig, client *http.Client, logger arbor.ILogger) *Downloader {
	if logger == nil {
		logger = common.GetLogger()
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Downloader{
		client:  client,
		retries: cfg.DownloadRetries,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Resolve returns a local file path for the source plus a cleanup function.
// Remote sources are downloaded to temporary storage; the cleanup removes
// that temporary file and must be called on every exit path. Local sources
// get a no-op cleanup.
func (d *Downloader) Resolve(ctx context.Context, source string) (string, func(), error) {
	source = strings.TrimSpace(source)
	noop := func() {}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		info, err := os.Stat(source)
		if err != nil || info.IsDir() {
			return "", noop, fmt.Errorf("%w: %s", ErrFileNotFound, source)
		}
		abs, err := filepath.Abs(source)
		if err != nil {
			return "", noop, fmt.Errorf("cannot resolve path %s: %w", source, err)
		}
		return abs, noop, nil
	}

	downloadURL := NormalizeShareURL(source)
	local, err := d.download(ctx, downloadURL)
	if err != nil {
		return "", noop, err
	}
	return local, func() { _ = os.Remove(local) }, nil
}

// NormalizeShareURL rewrites known cloud-storage share links into direct
// download URLs. Unrecognized URLs pass through unchanged.
func NormalizeShareURL(raw string) string {
	if m := driveFilePattern.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if m := driveOpenPattern.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if strings.Contains(raw, "dropbox.com") {
		if strings.Contains(raw, "dl=0") {
			return strings.Replace(raw, "dl=0", "dl=1", 1)
		}
		if !strings.Contains(raw, "dl=1") {
			sep := "?"
			if strings.Contains(raw, "?") {
				sep = "&"
			}
			return raw + sep + "dl=1"
		}
	}
	return raw
}

// download fetches the URL into a temp file with bounded retries. A payload
// that is empty or looks like an HTML error page counts as a failed attempt.
func (d *Downloader) download(ctx context.Context, downloadURL string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= d.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		local, err := d.fetchOnce(ctx, downloadURL)
		if err == nil {
			return local, nil
		}
		lastErr = err
		d.logger.Warn().
			Str("url", downloadURL).
			Int("attempt", attempt).
			Err(err).
			Msg("Image download attempt failed")

		if attempt < d.retries {
			select {
			case <-time.After(time.Second * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("download failed after %d attempts: %w", d.retries, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, downloadURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	local := filepath.Join(d.tempDir, common.NewTempFileName(extensionFor(downloadURL)))
	out, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("cannot create temp file: %w", err)
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(local)
		if copyErr == nil {
			copyErr = closeErr
		}
		return "", fmt.Errorf("payload write failed: %w", copyErr)
	}

	if err := validatePayload(local, written, resp.Header.Get("Content-Type")); err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}

// validatePayload rejects empty downloads and HTML bodies. Share hosts
// answer dead links with a 200 error page, so status alone is not trusted.
func validatePayload(local string, size int64, contentType string) error {
	if size == 0 {
		return errors.New("empty payload")
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return errors.New("payload is an html page")
	}

	head := make([]byte, 512)
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	n, _ := f.Read(head)
	_ = f.Close()

	sniffed := strings.ToLower(string(head[:n]))
	if strings.Contains(sniffed, "<html") || strings.Contains(sniffed, "<!doctype html") {
		return errors.New("payload is an html page")
	}
	return nil
}

// extensionFor picks a temp-file extension from the URL path, defaulting to
// .jpg when the path carries none.
func extensionFor(downloadURL string) string {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return ".jpg"
	}
	if ext := path.Ext(parsed.Path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}
