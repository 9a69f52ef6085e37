// Package normalize unpacks the downloaded archive and rewrites the extracted
// tab-delimited cities file into a semicolon-delimited intermediate.
package normalize

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/fetcher"
)

const (
	// SourceDelimiter separates fields in the raw cities file.
	SourceDelimiter = '\t'
	// Delimiter separates fields in the normalized file.
	Delimiter = ';'
)

// MultiplePolicy decides what happens when more than one extracted file matches.
type MultiplePolicy string

const (
	// UseFirst takes the first match in lexical order.
	UseFirst MultiplePolicy = "first"
	// FailOnMultiple aborts with ErrMultipleMatches.
	FailOnMultiple MultiplePolicy = "error"
)

var (
	// ErrNoMatch means the archive held no file matching the pattern.
	ErrNoMatch = eris.New("no extracted file matches pattern")
	// ErrMultipleMatches means several files matched under FailOnMultiple.
	ErrMultipleMatches = eris.New("multiple extracted files match pattern")
)

// ParseMultiplePolicy converts a config value into a MultiplePolicy.
func ParseMultiplePolicy(s string) (MultiplePolicy, error) {
	switch MultiplePolicy(s) {
	case "", UseFirst:
		return UseFirst, nil
	case FailOnMultiple:
		return FailOnMultiple, nil
	default:
		return "", eris.Errorf("unknown multiple-match policy: %q (valid: first, error)", s)
	}
}

// Unpacker extracts the cities file from an archive and normalizes its delimiter.
type Unpacker struct {
	// WorkDir receives extracted files and the normalized file.
	WorkDir string
	// Pattern is the glob the raw cities file must match, e.g. "cities*.txt".
	Pattern string
	// NormalizedName is the file name of the normalized output inside WorkDir.
	NormalizedName string
	// ExtractAll extracts every archive member instead of only matching ones.
	ExtractAll bool
	// CleanupExtracted removes the other extracted members after normalizing,
	// then any directories that extraction left empty. Directory entries that
	// held no files in the archive are left in place.
	CleanupExtracted bool
	// OnMultiple selects the behaviour when several files match Pattern.
	OnMultiple MultiplePolicy
}

// Unpack extracts archivePath, normalizes the matching cities file and removes
// both the raw file and the archive. Returns the normalized file's path.
func (u *Unpacker) Unpack(ctx context.Context, archivePath string) (string, error) {
	log := zap.L().With(zap.String("archive", archivePath))

	var (
		extracted []string
		err       error
	)
	if u.ExtractAll {
		extracted, err = fetcher.ExtractZIP(archivePath, u.WorkDir)
	} else {
		extracted, err = fetcher.ExtractZIPMatching(archivePath, u.Pattern, u.WorkDir)
	}
	if err != nil {
		return "", eris.Wrap(err, "unpack: extract")
	}
	log.Debug("archive extracted", zap.Int("files", len(extracted)))

	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "unpack: context cancelled")
	}

	raw, err := u.match()
	if err != nil {
		return "", err
	}

	normalized := filepath.Join(u.WorkDir, u.NormalizedName)
	lines, err := NormalizeFile(raw, normalized)
	if err != nil {
		return "", eris.Wrap(err, "unpack: normalize")
	}
	log.Info("cities file normalized",
		zap.String("raw", raw),
		zap.String("normalized", normalized),
		zap.Int64("lines", lines),
	)

	if err := os.Remove(raw); err != nil {
		return "", eris.Wrap(err, "unpack: remove raw file")
	}
	if err := os.Remove(archivePath); err != nil {
		return "", eris.Wrap(err, "unpack: remove archive")
	}

	if u.CleanupExtracted {
		u.removeSiblings(extracted, raw, normalized)
	}

	return normalized, nil
}

// match finds the raw cities file inside WorkDir.
func (u *Unpacker) match() (string, error) {
	matches, err := filepath.Glob(filepath.Join(u.WorkDir, u.Pattern))
	if err != nil {
		return "", eris.Wrapf(err, "unpack: bad pattern %q", u.Pattern)
	}

	switch {
	case len(matches) == 0:
		return "", eris.Wrapf(ErrNoMatch, "unpack: pattern %q in %s", u.Pattern, u.WorkDir)
	case len(matches) > 1 && u.OnMultiple == FailOnMultiple:
		return "", eris.Wrapf(ErrMultipleMatches, "unpack: %d files match %q", len(matches), u.Pattern)
	case len(matches) > 1:
		zap.L().Warn("several files match pattern, using the first",
			zap.String("pattern", u.Pattern),
			zap.Strings("matches", matches),
		)
	}
	return matches[0], nil
}

func (u *Unpacker) removeSiblings(extracted []string, raw, normalized string) {
	dirs := make(map[string]struct{})
	for _, p := range extracted {
		if p == raw || p == normalized {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("remove extracted file", zap.String("path", p), zap.Error(err))
			continue
		}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	u.pruneDirs(dirs)
}

// pruneDirs removes the given directories and their ancestors below WorkDir,
// deepest first, as long as they are empty. WorkDir itself is never removed.
func (u *Unpacker) pruneDirs(dirs map[string]struct{}) {
	root := filepath.Clean(u.WorkDir)
	var chain []string
	for d := range dirs {
		for d = filepath.Clean(d); d != root && d != "." && d != filepath.Dir(d); d = filepath.Dir(d) {
			chain = append(chain, d)
		}
	}
	sort.Slice(chain, func(i, j int) bool { return len(chain[i]) > len(chain[j]) })

	for _, d := range chain {
		// Non-empty directories stay.
		_ = os.Remove(d)
	}
}

// NormalizeFile rewrites src into dst replacing every tab with a semicolon.
// Returns the number of lines written.
func NormalizeFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, eris.Wrap(err, "open raw file")
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "create normalized file")
	}

	n, err := NormalizeStream(in, out)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, eris.Wrap(err, "close normalized file")
	}
	return n, nil
}

// NormalizeStream copies r to w line by line, replacing the tab delimiter with
// a semicolon. Every other byte, including line terminators, passes through.
func NormalizeStream(r io.Reader, w io.Writer) (int64, error) {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	var lines int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.ReplaceAll(line, []byte{SourceDelimiter}, []byte{Delimiter})
			if _, werr := bw.Write(line); werr != nil {
				return lines, eris.Wrap(werr, "write line")
			}
			lines++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, eris.Wrap(err, "read line")
		}
	}

	if err := bw.Flush(); err != nil {
		return lines, eris.Wrap(err, "flush")
	}
	return lines, nil
}
