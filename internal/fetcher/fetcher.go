// Package fetcher downloads the source archive over HTTP or FTP and unpacks ZIP archives.
package fetcher

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Fetch retrieves url into dest, overwriting any existing file, and returns dest.
// Exactly one attempt is made.
func Fetch(ctx context.Context, f Fetcher, url, dest string) (string, error) {
	zap.L().Info("fetching archive", zap.String("url", url), zap.String("dest", dest))

	n, err := f.DownloadToFile(ctx, url, dest)
	if err != nil {
		return "", eris.Wrapf(err, "fetch %s", url)
	}

	zap.L().Info("archive fetched", zap.String("dest", dest), zap.Int64("bytes", n))
	return dest, nil
}

// writeBodyToFile copies body into a freshly created file at path. A failed copy
// removes the partial file so no artifact outlives a failed download.
func writeBodyToFile(body io.Reader, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}

	n, err := io.Copy(file, body)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return n, eris.Wrap(err, "write file")
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return n, eris.Wrap(err, "close file")
	}

	return n, nil
}
