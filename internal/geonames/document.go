package geonames

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Format selects how the output document is rendered.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a config value like "json" or "YAML" into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("unknown output format: %q (valid: json, yaml)", s)
	}
}

// Encode renders records as one top-level array, indenting nested levels by
// indent spaces. Record order is preserved.
func Encode(w io.Writer, records []Record, format Format, indent int) error {
	if records == nil {
		records = []Record{}
	}
	if indent < 0 {
		indent = 0
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", strings.Repeat(" ", indent))
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "geonames: encode json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if indent > 0 {
			enc.SetIndent(indent)
		}
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "geonames: encode yaml")
		}
		return eris.Wrap(enc.Close(), "geonames: close yaml encoder")
	default:
		return eris.Errorf("geonames: unsupported format %q", format)
	}
}

// ReadRecords parses every non-blank line of r into a Record. The whole input is
// materialized before returning.
func ReadRecords(r io.Reader, delim string) ([]Record, error) {
	br := bufio.NewReader(r)
	records := []Record{}
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if rec, ok := ParseLine(line, delim); ok {
				records = append(records, rec)
			}
		}
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, eris.Wrap(err, "geonames: read line")
		}
	}
}
