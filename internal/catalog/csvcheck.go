package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/orsg/prisme/internal/pkg/logger"
)

// FoundSource is a variable whose CSV source exists.
type FoundSource struct {
	Variable string `json:"variable"`
	Pattern  string `json:"pattern"`
	File     string `json:"file"`
}

// MissingSource is a variable with no matching CSV file.
type MissingSource struct {
	Variable string `json:"variable"`
	Pattern  string `json:"pattern"`
}

// Availability is the outcome of a CSV presence check.
type Availability struct {
	Available bool            `json:"available"`
	Found     []FoundSource   `json:"found"`
	Missing   []MissingSource `json:"missing"`
}

// CheckCSV looks for the CSV source of every CSV-backed variable of dataset
// id in dir. Availability requires at least one considered variable and no
// missing one. File contents are never read.
func (c *Catalog) CheckCSV(id, dir string) (Availability, error) {
	ds, ok := c.doc.Datasets[id]
	if !ok {
		return Availability{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return CheckSources(ds, ListCSVFiles(dir)), nil
}

// CheckSources matches the dataset variables against a list of file names.
func CheckSources(ds Dataset, files []string) Availability {
	av := Availability{Found: []FoundSource{}, Missing: []MissingSource{}}
	for _, col := range ds.Columns {
		if col.Type != ColumnVariable || col.CSVPattern == "" || col.IsExternal() {
			continue
		}
		if file, ok := FindCSV(col.CSVPattern, files); ok {
			av.Found = append(av.Found, FoundSource{Variable: col.ID, Pattern: col.CSVPattern, File: file})
		} else {
			av.Missing = append(av.Missing, MissingSource{Variable: col.ID, Pattern: col.CSVPattern})
		}
	}
	av.Available = len(av.Found) > 0 && len(av.Missing) == 0
	return av
}

// FindCSV returns the file matching *pattern*.csv, preferring names that
// start with the pattern, then the first match in list order.
func FindCSV(pattern string, files []string) (string, bool) {
	first := ""
	for _, name := range files {
		if !strings.HasSuffix(name, ".csv") || !strings.Contains(name, pattern) {
			continue
		}
		if strings.HasPrefix(name, pattern) {
			return name, true
		}
		if first == "" {
			first = name
		}
	}
	return first, first != ""
}

// ListCSVFiles returns the names of regular .csv files in dir. An unreadable
// directory is logged and treated as empty.
func ListCSVFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("csv sources unreadable", "dir", dir, "error", err)
		return nil
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	return files
}
