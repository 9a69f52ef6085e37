// Package geonames defines the populated-place record schema of the GeoNames
// cities dump and the codecs that read and render it.
package geonames

import "strings"

// FieldCount is the number of positional columns in a cities dump row.
const FieldCount = 19

// FieldNames lists the schema columns in positional order.
var FieldNames = [FieldCount]string{
	"geonameid",
	"name",
	"ascii_name",
	"alter_names",
	"latitude",
	"longitude",
	"feature_class",
	"feature_code",
	"country_code",
	"cc2",
	"admin1_code",
	"admin2_code",
	"admin3_code",
	"admin4_code",
	"population",
	"elevation",
	"dig_elevation",
	"timezone",
	"last_update",
}

// SurplusKey is the document key holding values past the last schema column.
const SurplusKey = "surplus"

// Record is one populated place. Every value is kept as text. A nil field means
// the source row ended before that column; Surplus holds any columns past the
// nineteenth and is empty for well-formed rows.
type Record struct {
	GeonameID    *string `json:"geonameid" yaml:"geonameid"`
	Name         *string `json:"name" yaml:"name"`
	ASCIIName    *string `json:"ascii_name" yaml:"ascii_name"`
	AlterNames   *string `json:"alter_names" yaml:"alter_names"`
	Latitude     *string `json:"latitude" yaml:"latitude"`
	Longitude    *string `json:"longitude" yaml:"longitude"`
	FeatureClass *string `json:"feature_class" yaml:"feature_class"`
	FeatureCode  *string `json:"feature_code" yaml:"feature_code"`
	CountryCode  *string `json:"country_code" yaml:"country_code"`
	CC2          *string `json:"cc2" yaml:"cc2"`
	Admin1Code   *string `json:"admin1_code" yaml:"admin1_code"`
	Admin2Code   *string `json:"admin2_code" yaml:"admin2_code"`
	Admin3Code   *string `json:"admin3_code" yaml:"admin3_code"`
	Admin4Code   *string `json:"admin4_code" yaml:"admin4_code"`
	Population   *string `json:"population" yaml:"population"`
	Elevation    *string `json:"elevation" yaml:"elevation"`
	DigElevation *string `json:"dig_elevation" yaml:"dig_elevation"`
	Timezone     *string `json:"timezone" yaml:"timezone"`
	LastUpdate   *string `json:"last_update" yaml:"last_update"`

	Surplus []string `json:"surplus,omitempty" yaml:"surplus,omitempty"`
}

// slots returns pointers to the schema fields in positional order.
func (r *Record) slots() [FieldCount]**string {
	return [FieldCount]**string{
		&r.GeonameID, &r.Name, &r.ASCIIName, &r.AlterNames,
		&r.Latitude, &r.Longitude, &r.FeatureClass, &r.FeatureCode,
		&r.CountryCode, &r.CC2, &r.Admin1Code, &r.Admin2Code,
		&r.Admin3Code, &r.Admin4Code, &r.Population, &r.Elevation,
		&r.DigElevation, &r.Timezone, &r.LastUpdate,
	}
}

// Values returns the schema values in positional order. Missing columns are nil.
func (r *Record) Values() []*string {
	out := make([]*string, 0, FieldCount)
	for _, s := range r.slots() {
		out = append(out, *s)
	}
	return out
}

// Present returns how many schema columns the source row supplied.
func (r *Record) Present() int {
	n := 0
	for _, v := range r.Values() {
		if v != nil {
			n++
		}
	}
	return n
}

// ParseLine maps one delimited line onto a Record by position. A single trailing
// line terminator is ignored. Blank lines carry no record and return ok=false.
func ParseLine(line, delim string) (rec Record, ok bool) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Record{}, false
	}

	parts := strings.Split(line, delim)
	slots := rec.slots()
	for i, p := range parts {
		if i >= FieldCount {
			rec.Surplus = append(rec.Surplus, parts[i:]...)
			break
		}
		v := p
		*slots[i] = &v
	}
	return rec, true
}
