package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination directory.
// Returns the list of extracted file paths in archive order.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	return extractZIPWhere(zipPath, destDir, func(*zip.File) (bool, error) { return true, nil })
}

// ExtractZIPMatching extracts only the files whose base name matches the glob
// pattern (path.Match syntax). Returns the extracted paths in archive order.
func ExtractZIPMatching(zipPath, pattern, destDir string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, eris.Wrapf(err, "zip: bad pattern %q", pattern)
	}
	return extractZIPWhere(zipPath, destDir, func(f *zip.File) (bool, error) {
		return path.Match(pattern, path.Base(f.Name))
	})
}

func extractZIPWhere(zipPath, destDir string, keep func(*zip.File) (bool, error)) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		ok, err := keep(f)
		if err != nil {
			return extracted, eris.Wrap(err, "zip: match entry")
		}
		if !ok {
			continue
		}
		p, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if p != "" {
			extracted = append(extracted, p)
		}
	}

	return extracted, nil
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}
	destPath := filepath.Join(destDir, filepath.FromSlash(f.Name))

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "zip: write file")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "zip: close file")
	}

	return destPath, nil
}
