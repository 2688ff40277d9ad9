package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Downloader fetches remote datasets into the input directory.
type Downloader struct {
	rest   *resty.Client
	logger zerolog.Logger
}

// NewDownloader creates a downloader whose requests time out after timeout.
func NewDownloader(timeout time.Duration, logger zerolog.Logger) *Downloader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(time.Minute)
	}
	return &Downloader{rest: r, logger: logger}
}

// Fetch downloads url to dest. The body goes to a temporary file in the
// destination directory and is renamed into place once complete.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create download file for %s: %v", ErrDataAccess, dest, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	resp, err := d.rest.R().
		SetContext(ctx).
		SetOutput(tmpPath).
		Get(url)
	if err != nil {
		return fmt.Errorf("%w: failed to download %s: %v", ErrDataAccess, url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: failed to download %s: %s", ErrDataAccess, url, resp.Status())
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("%w: failed to store %s: %v", ErrDataAccess, dest, err)
	}

	d.logger.Info().
		Str("url", url).
		Str("path", dest).
		Msg("Dataset downloaded")
	return nil
}
