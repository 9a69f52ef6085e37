package normalize

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawLine = "1\tAlpha\tAlpha\t\t1.0\t2.0\tP\tPPL\tUS\t\t\t\t\t\t1000\t\t\t\tTZ\t2020-01-01\n"

// createTestZip writes a ZIP into dir holding the given members in order.
func createTestZip(t *testing.T, dir string, members ...[2]string) string {
	t.Helper()
	zipPath := filepath.Join(dir, "cities.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(zf)
	for _, m := range members {
		f, err := w.Create(m[0])
		require.NoError(t, err)
		_, err = f.Write([]byte(m[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, zf.Close())
	return zipPath
}

func newUnpacker(dir string) *Unpacker {
	return &Unpacker{
		WorkDir:        dir,
		Pattern:        "cities*.txt",
		NormalizedName: "temp.csv",
		ExtractAll:     true,
		OnMultiple:     UseFirst,
	}
}

func TestNormalizeStream_ReplacesTabsOnly(t *testing.T) {
	in := "a\tb\tc\r\n\t\n  spaced\tvalue  \nlast\tline"
	var out bytes.Buffer
	n, err := NormalizeStream(strings.NewReader(in), &out)
	require.NoError(t, err)

	assert.Equal(t, int64(4), n)
	assert.Equal(t, "a;b;c\r\n;\n  spaced;value  \nlast;line", out.String())
	assert.Equal(t, in, strings.ReplaceAll(out.String(), ";", "\t"))
}

func TestNormalizeStream_PassesNonASCIIBytes(t *testing.T) {
	in := "São Paulo\tСанкт-Петербург\t\xff\xfe\n"
	var out bytes.Buffer
	_, err := NormalizeStream(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, "São Paulo;Санкт-Петербург;\xff\xfe\n", out.String())
}

func TestNormalizeStream_LongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20) + "\t" + strings.Repeat("y", 1<<20) + "\n"
	var out bytes.Buffer
	n, err := NormalizeStream(strings.NewReader(long), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, strings.Replace(long, "\t", ";", 1), out.String())
}

func TestNormalizeStream_Empty(t *testing.T) {
	var out bytes.Buffer
	n, err := NormalizeStream(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out.String())
}

func TestNormalizeFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NormalizeFile(filepath.Join(dir, "nope.txt"), filepath.Join(dir, "temp.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open raw file")
}

func TestUnpack_HappyPath(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir,
		[2]string{"cities1000.txt", rawLine + rawLine},
		[2]string{"readme.txt", "about"},
	)

	got, err := newUnpacker(dir).Unpack(context.Background(), zipPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "temp.csv"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	want := strings.ReplaceAll(rawLine, "\t", ";")
	assert.Equal(t, want+want, string(data))

	assert.NoFileExists(t, zipPath)
	assert.NoFileExists(t, filepath.Join(dir, "cities1000.txt"))
	// Siblings stay behind unless cleanup is requested.
	assert.FileExists(t, filepath.Join(dir, "readme.txt"))
}

func TestUnpack_CleanupExtracted(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir,
		[2]string{"cities1000.txt", rawLine},
		[2]string{"readme.txt", "about"},
	)

	u := newUnpacker(dir)
	u.CleanupExtracted = true
	got, err := u.Unpack(context.Background(), zipPath)
	require.NoError(t, err)

	assert.FileExists(t, got)
	assert.NoFileExists(t, filepath.Join(dir, "readme.txt"))
}

func TestUnpack_CleanupExtractedPrunesEmptyDirs(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared")
	require.NoError(t, os.MkdirAll(shared, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shared, "mine.txt"), []byte("keep"), 0o644))

	zipPath := createTestZip(t, dir,
		[2]string{"cities1000.txt", rawLine},
		[2]string{"docs/readme.txt", "about"},
		[2]string{"docs/deep/notes.txt", "more"},
		[2]string{"shared/extra.txt", "x"},
	)

	u := newUnpacker(dir)
	u.CleanupExtracted = true
	got, err := u.Unpack(context.Background(), zipPath)
	require.NoError(t, err)

	assert.FileExists(t, got)
	assert.NoDirExists(t, filepath.Join(dir, "docs"))
	assert.NoFileExists(t, filepath.Join(shared, "extra.txt"))
	assert.FileExists(t, filepath.Join(shared, "mine.txt"))
	assert.DirExists(t, dir)
}

func TestUnpack_ExtractMatchingOnly(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir,
		[2]string{"readme.txt", "about"},
		[2]string{"cities500.txt", rawLine},
	)

	u := newUnpacker(dir)
	u.ExtractAll = false
	_, err := u.Unpack(context.Background(), zipPath)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "readme.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "cities500.txt"))
}

func TestUnpack_NoMatch(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, [2]string{"readme.txt", "about"})

	_, err := newUnpacker(dir).Unpack(context.Background(), zipPath)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoMatch))

	assert.NoFileExists(t, filepath.Join(dir, "temp.csv"))
	// The archive is only removed on success.
	assert.FileExists(t, zipPath)
}

func TestUnpack_MultipleMatches_First(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir,
		[2]string{"cities5000.txt", "second\tfile\n"},
		[2]string{"cities1000.txt", "first\tfile\n"},
	)

	got, err := newUnpacker(dir).Unpack(context.Background(), zipPath)
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "first;file\n", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "cities1000.txt"))
	assert.FileExists(t, filepath.Join(dir, "cities5000.txt"))
}

func TestUnpack_MultipleMatches_Error(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir,
		[2]string{"cities1000.txt", "a\n"},
		[2]string{"cities5000.txt", "b\n"},
	)

	u := newUnpacker(dir)
	u.OnMultiple = FailOnMultiple
	_, err := u.Unpack(context.Background(), zipPath)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMultipleMatches))
	assert.NoFileExists(t, filepath.Join(dir, "temp.csv"))
}

func TestUnpack_InvalidArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "cities.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("<html>not found</html>"), 0o644))

	_, err := newUnpacker(dir).Unpack(context.Background(), zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unpack: extract")
}

func TestUnpack_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, [2]string{"cities1000.txt", rawLine})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newUnpacker(dir).Unpack(ctx, zipPath)
	require.Error(t, err)
	assert.FileExists(t, zipPath)
}

func TestParseMultiplePolicy(t *testing.T) {
	p, err := ParseMultiplePolicy("")
	require.NoError(t, err)
	assert.Equal(t, UseFirst, p)

	p, err = ParseMultiplePolicy("error")
	require.NoError(t, err)
	assert.Equal(t, FailOnMultiple, p)

	_, err = ParseMultiplePolicy("last")
	require.Error(t, err)
}
