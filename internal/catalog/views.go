package catalog

import "fmt"

// DatasetView is the public projection of a dataset used by /datasets and
// /dataset-info.
type DatasetView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	FolderPath string   `json:"folderPath"`
	FileName   string   `json:"fileName"`
	Sheets     []string `json:"sheets"`
	Variables  []string `json:"variables"`
}

// ThemeTree returns the theme hierarchy as configured.
func (c *Catalog) ThemeTree() []ThemeNode {
	return c.doc.ThemeTree
}

// Datasets projects every configured dataset.
func (c *Catalog) Datasets() map[string]DatasetView {
	out := make(map[string]DatasetView, len(c.doc.Datasets))
	for id, ds := range c.doc.Datasets {
		out[id] = view(id, ds)
	}
	return out
}

// Dataset projects one dataset, or returns ErrNotFound.
func (c *Catalog) Dataset(id string) (DatasetView, error) {
	ds, ok := c.doc.Datasets[id]
	if !ok {
		return DatasetView{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return view(id, ds), nil
}

func view(id string, ds Dataset) DatasetView {
	v := DatasetView{
		ID:         id,
		Name:       ds.Name,
		FolderPath: ds.FolderPath,
		FileName:   ds.FileName,
		Sheets:     append([]string(nil), ds.Sheets...),
		Variables:  []string{},
	}
	if v.Name == "" {
		v.Name = id
	}
	if v.FileName == "" {
		v.FileName = id
	}
	if len(v.Sheets) == 0 {
		v.Sheets = append([]string(nil), DefaultSheets...)
	}
	for _, col := range ds.Columns {
		if col.Type == ColumnVariable {
			v.Variables = append(v.Variables, col.ID)
		}
	}
	return v
}
