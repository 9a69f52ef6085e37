package serialize

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

const normalizedLine = "1;Alpha;Alpha;;1.0;2.0;P;PPL;US;;;;;;1000;;;TZ;2020-01-01\n"

func writeNormalized(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "temp.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readDoc(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc []map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func newSerializer() *Serializer {
	return &Serializer{Format: geonames.FormatJSON, Indent: 4}
}

func TestSerialize_WritesDocumentAndRemovesInput(t *testing.T) {
	dir := t.TempDir()
	in := writeNormalized(t, dir, normalizedLine+strings.Replace(normalizedLine, "1;Alpha;Alpha", "2;Beta;Beta", 1))
	out := filepath.Join(dir, "cities.json")

	records, err := newSerializer().Serialize(context.Background(), in, out)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	doc := readDoc(t, out)
	require.Len(t, doc, 2)
	assert.Equal(t, "1", doc[0]["geonameid"])
	assert.Equal(t, "2", doc[1]["geonameid"])
	assert.Equal(t, "1000", doc[0]["population"])
	assert.Equal(t, "TZ", doc[1]["timezone"])
	assert.Len(t, doc[0], geonames.FieldCount)

	assert.NoFileExists(t, in)
	assert.NoFileExists(t, out+".tmp")
}

func TestSerialize_ShortAndLongRows(t *testing.T) {
	dir := t.TempDir()
	long := strings.TrimSuffix(normalizedLine, "\n") + ";x;y\n"
	in := writeNormalized(t, dir, "9;a;b;c;d\n"+long)
	out := filepath.Join(dir, "cities.json")

	_, err := newSerializer().Serialize(context.Background(), in, out)
	require.NoError(t, err)

	doc := readDoc(t, out)
	require.Len(t, doc, 2)
	assert.Equal(t, "d", doc[0]["latitude"])
	assert.Contains(t, doc[0], "longitude")
	assert.Nil(t, doc[0]["longitude"])
	assert.Nil(t, doc[0]["last_update"])

	assert.Equal(t, "2020-01-01", doc[1]["last_update"])
	assert.Equal(t, []any{"x", "y"}, doc[1][geonames.SurplusKey])
}

func TestSerialize_Idempotent(t *testing.T) {
	dir := t.TempDir()
	out1 := filepath.Join(dir, "a.json")
	out2 := filepath.Join(dir, "b.json")

	_, err := newSerializer().Serialize(context.Background(), writeNormalized(t, dir, normalizedLine), out1)
	require.NoError(t, err)
	_, err = newSerializer().Serialize(context.Background(), writeNormalized(t, dir, normalizedLine), out2)
	require.NoError(t, err)

	a, err := os.ReadFile(out1)
	require.NoError(t, err)
	b, err := os.ReadFile(out2)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSerialize_OverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cities.json")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))

	_, err := newSerializer().Serialize(context.Background(), writeNormalized(t, dir, normalizedLine), out)
	require.NoError(t, err)
	assert.Len(t, readDoc(t, out), 1)
}

func TestSerialize_MissingInputLeavesOutputUntouched(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cities.json")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0o644))

	_, err := newSerializer().Serialize(context.Background(), filepath.Join(dir, "temp.csv"), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open normalized file")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestSerialize_UnwritableOutputKeepsInput(t *testing.T) {
	dir := t.TempDir()
	in := writeNormalized(t, dir, normalizedLine)

	_, err := newSerializer().Serialize(context.Background(), in, filepath.Join(dir, "no", "such", "cities.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output")
	assert.FileExists(t, in)
}

func TestSerialize_YAML(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cities.yaml")
	s := &Serializer{Format: geonames.FormatYAML, Indent: 2}

	_, err := s.Serialize(context.Background(), writeNormalized(t, dir, normalizedLine), out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `- geonameid: "1"`))
}

func TestSerialize_EmptyInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cities.json")

	records, err := newSerializer().Serialize(context.Background(), writeNormalized(t, dir, ""), out)
	require.NoError(t, err)
	assert.Empty(t, records)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
