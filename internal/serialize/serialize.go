// Package serialize turns the normalized cities file into the output document.
package serialize

import (
	"bufio"
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

// Delimiter separates fields in the normalized input.
const Delimiter = ";"

// Serializer renders records as a single indented document.
type Serializer struct {
	Format geonames.Format
	Indent int
}

// Serialize reads every record from normalizedPath, writes the document to
// outputPath and then removes normalizedPath. The records are returned so the
// caller can hand them to further sinks.
func (s *Serializer) Serialize(ctx context.Context, normalizedPath, outputPath string) ([]geonames.Record, error) {
	in, err := os.Open(normalizedPath)
	if err != nil {
		return nil, eris.Wrap(err, "serialize: open normalized file")
	}
	records, err := geonames.ReadRecords(in, Delimiter)
	_ = in.Close()
	if err != nil {
		return nil, eris.Wrap(err, "serialize: read records")
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "serialize: context cancelled")
	}

	irregular := 0
	for i := range records {
		if records[i].Present() != geonames.FieldCount || len(records[i].Surplus) > 0 {
			irregular++
		}
	}
	if irregular > 0 {
		zap.L().Debug("rows with irregular field count kept positionally", zap.Int("rows", irregular))
	}

	if err := s.writeDocument(records, outputPath); err != nil {
		return nil, err
	}

	if err := os.Remove(normalizedPath); err != nil {
		return nil, eris.Wrap(err, "serialize: remove normalized file")
	}

	zap.L().Info("document written",
		zap.String("output", outputPath),
		zap.String("format", string(s.Format)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// writeDocument encodes into a sibling temp file and renames it over
// outputPath, so outputPath is either the previous document or the new one.
func (s *Serializer) writeDocument(records []geonames.Record, outputPath string) error {
	tmp := outputPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "serialize: create output")
	}

	bw := bufio.NewWriter(f)
	if err := geonames.Encode(bw, records, s.Format, s.Indent); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "serialize: encode")
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "serialize: flush output")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "serialize: close output")
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "serialize: replace output")
	}
	return nil
}
