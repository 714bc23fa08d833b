package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/orsg/prisme/internal/pkg/logger"
)

// ErrNotFound is returned when a dataset id is absent from the catalog.
var ErrNotFound = errors.New("dataset not found")

// Catalog is an immutable, versioned snapshot of the themes document.
// A new snapshot replaces the old one on reload; fields are never mutated.
type Catalog struct {
	doc      Document
	version  uint64
	loadedAt time.Time
	source   string
	warnings []string
	loadErr  error
}

// Empty returns the fallback catalog {datasets: {}, themeTree: [], geoLevels: {}}.
func Empty() *Catalog {
	return &Catalog{
		doc: Document{
			Datasets:  map[string]Dataset{},
			ThemeTree: []ThemeNode{},
			GeoLevels: map[string]GeoLevel{},
		},
		loadedAt: time.Now(),
	}
}

// FromDocument builds a validated catalog from an in-memory document.
func FromDocument(doc Document, version uint64) *Catalog {
	c := &Catalog{version: version, loadedAt: time.Now()}
	c.doc, c.warnings = normalize(doc)
	return c
}

// Load reads the themes document at path. Read and parse failures are logged
// and yield the empty fallback catalog; Load itself never fails.
func Load(path string, version uint64) *Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("themes config unreadable, using empty catalog", "path", path, "error", err)
		return fallback(path, version, fmt.Errorf("reading %s: %w", path, err))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Error("themes config malformed, using empty catalog", "path", path, "error", err)
		return fallback(path, version, fmt.Errorf("parsing %s: %w", path, err))
	}

	c := FromDocument(doc, version)
	c.source = path
	for _, w := range c.warnings {
		logger.Warn("themes config", "path", path, "warning", w)
	}
	logger.Info("themes config loaded", "path", path, "datasets", len(c.doc.Datasets), "version", version)
	return c
}

func fallback(path string, version uint64, err error) *Catalog {
	c := Empty()
	c.version = version
	c.source = path
	c.loadErr = err
	return c
}

// normalize validates the document once so read sites never re-check shapes.
func normalize(doc Document) (Document, []string) {
	var warnings []string
	out := Document{
		Datasets:  make(map[string]Dataset, len(doc.Datasets)),
		ThemeTree: doc.ThemeTree,
		GeoLevels: doc.GeoLevels,
	}
	if out.ThemeTree == nil {
		out.ThemeTree = []ThemeNode{}
	}
	if out.GeoLevels == nil {
		out.GeoLevels = map[string]GeoLevel{}
	}

	for id, ds := range doc.Datasets {
		cols := make([]Column, 0, len(ds.Columns))
		for i, col := range ds.Columns {
			if col.ID == "" {
				warnings = append(warnings, fmt.Sprintf("dataset %s: column #%d has no id, dropped", id, i))
				continue
			}
			if !knownColumnTypes[col.Type] {
				warnings = append(warnings, fmt.Sprintf("dataset %s: column %s has unknown type %q", id, col.ID, col.Type))
			}
			if col.Type == ColumnVariable {
				if col.Parser != "" && !knownParsers[col.Parser] {
					warnings = append(warnings, fmt.Sprintf("dataset %s: variable %s has unknown parser %q", id, col.ID, col.Parser))
				}
				if col.CSVPattern == "" && !col.IsExternal() {
					warnings = append(warnings, fmt.Sprintf("dataset %s: variable %s has no csvPattern", id, col.ID))
				}
			}
			cols = append(cols, col)
		}
		ds.Columns = cols
		out.Datasets[id] = ds
	}

	var walk func(nodes []ThemeNode)
	walk = func(nodes []ThemeNode) {
		for _, n := range nodes {
			for _, ref := range n.Datasets {
				if _, ok := out.Datasets[ref]; !ok {
					warnings = append(warnings, fmt.Sprintf("theme %s references unknown dataset %s", n.ID, ref))
				}
			}
			walk(n.SubThemes)
		}
	}
	walk(out.ThemeTree)

	sort.Strings(warnings)
	return out, warnings
}

// Version is the reload counter of this snapshot.
func (c *Catalog) Version() uint64 { return c.version }

// LoadedAt is when this snapshot was built.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Source is the file the snapshot was read from, if any.
func (c *Catalog) Source() string { return c.source }

// Warnings lists validation findings of the document.
func (c *Catalog) Warnings() []string { return c.warnings }

// LoadError is the read/parse error that caused a fallback, or nil.
func (c *Catalog) LoadError() error { return c.loadErr }

// Len is the number of configured datasets.
func (c *Catalog) Len() int { return len(c.doc.Datasets) }

// Lookup returns the raw dataset definition.
func (c *Catalog) Lookup(id string) (Dataset, bool) {
	ds, ok := c.doc.Datasets[id]
	return ds, ok
}

// IDs returns the dataset ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.doc.Datasets))
	for id := range c.doc.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GeoLevels returns the configured geographic levels.
func (c *Catalog) GeoLevels() map[string]GeoLevel { return c.doc.GeoLevels }
