// Package catalog holds the themes/datasets configuration document and the
// read-only queries served over it.
package catalog

import (
	"encoding/json"
	"fmt"
)

// Column types recognised in a dataset definition.
const (
	ColumnGeoID     = "geo_id"
	ColumnYear      = "year"
	ColumnPeriod    = "period"
	ColumnDimension = "dimension"
	ColumnVariable  = "variable"
)

// Parsers understood by the report engine. ParserExternal marks a variable
// whose data does not come from a CSV file.
const (
	ParserMoca       = "moca"
	ParserLong       = "long"
	ParserTabular    = "tabular"
	ParserMocaFilter = "moca_filter"
	ParserExternal   = "external"
)

// DefaultSheets is used when a dataset does not list its geographic levels:
// commune, region, overseas departments, mainland France, all of France.
var DefaultSheets = []string{"com", "reg", "dom", "fh", "fra"}

var knownColumnTypes = map[string]bool{
	ColumnGeoID: true, ColumnYear: true, ColumnPeriod: true,
	ColumnDimension: true, ColumnVariable: true,
}

var knownParsers = map[string]bool{
	ParserMoca: true, ParserLong: true, ParserTabular: true,
	ParserMocaFilter: true, ParserExternal: true,
}

// Document is the on-disk themes configuration.
type Document struct {
	Datasets  map[string]Dataset  `json:"datasets"`
	ThemeTree []ThemeNode         `json:"themeTree"`
	GeoLevels map[string]GeoLevel `json:"geoLevels"`
}

// Dataset describes one generatable dataset. Optional fields are pointers or
// empty values; the fallbacks live in the view layer.
type Dataset struct {
	Name              string   `json:"name,omitempty"`
	FolderPath        string   `json:"folderPath,omitempty"`
	FileName          string   `json:"fileName,omitempty"`
	Sheets            []string `json:"sheets,omitempty"`
	Columns           []Column `json:"columns,omitempty"`
	MultiRowDimension string   `json:"multiRowDimension,omitempty"`
}

// Column is one column of a generated sheet. For variables, CSVPattern
// locates the source file.
type Column struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Label       string `json:"label,omitempty"`
	CSVPattern  string `json:"csvPattern,omitempty"`
	Parser      string `json:"parser,omitempty"`
	Source      string `json:"source,omitempty"`
	Values      []any  `json:"values,omitempty"`
	Column      *int   `json:"column,omitempty"`
	YearColumn  *int   `json:"yearColumn,omitempty"`
	GeoColumn   *int   `json:"geoColumn,omitempty"`
	ValueColumn *int   `json:"valueColumn,omitempty"`
	FilterCol   *int   `json:"filterColumn,omitempty"`
	FilterValue string `json:"filterValue,omitempty"`
}

// ParserName returns the parser, defaulting to moca like the engine does.
func (c Column) ParserName() string {
	if c.Parser == "" {
		return ParserMoca
	}
	return c.Parser
}

// IsExternal reports whether the column is fed by a non-CSV source.
func (c Column) IsExternal() bool { return c.Parser == ParserExternal }

// ThemeNode is a node of the theme hierarchy shown by the frontend.
type ThemeNode struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Icon      string      `json:"icon,omitempty"`
	Color     string      `json:"color,omitempty"`
	Datasets  []string    `json:"datasets,omitempty"`
	SubThemes []ThemeNode `json:"subThemes,omitempty"`
}

// GeoLevel is a geographic aggregation level. The document may give either a
// bare label string or an object.
type GeoLevel struct {
	Label  string `json:"label"`
	Folder string `json:"folder,omitempty"`
}

// UnmarshalJSON accepts "Commune" as well as {"label": "Commune", ...}.
func (g *GeoLevel) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		g.Label = label
		return nil
	}
	var obj struct {
		Label  string `json:"label"`
		Name   string `json:"name"`
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("geo level: %w", err)
	}
	g.Label = obj.Label
	if g.Label == "" {
		g.Label = obj.Name
	}
	g.Folder = obj.Folder
	return nil
}
