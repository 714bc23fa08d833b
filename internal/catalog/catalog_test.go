package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePath = "testdata/themes_config.json"

func TestLoadFixture(t *testing.T) {
	c := Load(fixturePath, 1)

	require.NoError(t, c.LoadError())
	assert.Equal(t, uint64(1), c.Version())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"educ", "pers_sup65ans_seules", "sae"}, c.IDs())

	tree := c.ThemeTree()
	require.Len(t, tree, 1)
	require.Len(t, tree[0].SubThemes, 2)
	assert.Equal(t, []string{"educ"}, tree[0].SubThemes[0].Datasets)

	geo := c.GeoLevels()
	assert.Equal(t, GeoLevel{Label: "Commune"}, geo["com"])
	assert.Equal(t, GeoLevel{Label: "Région", Folder: "Région"}, geo["reg"])
}

func TestLoadValidationWarnings(t *testing.T) {
	c := Load(fixturePath, 1)

	// The column without id is dropped, the dangling theme reference reported.
	sae, ok := c.Lookup("sae")
	require.True(t, ok)
	assert.Len(t, sae.Columns, 3)

	assert.Contains(t, c.Warnings(), "dataset sae: column #2 has no id, dropped")
	assert.Contains(t, c.Warnings(), "theme seniors references unknown dataset ghost")
}

func TestLoadMissingFileFallsBackToEmpty(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "absent.json"), 4)

	require.Error(t, c.LoadError())
	assert.Equal(t, uint64(4), c.Version())
	assert.Equal(t, 0, c.Len())
	assert.NotNil(t, c.ThemeTree())
	assert.Empty(t, c.ThemeTree())
	assert.Empty(t, c.Datasets())
	assert.NotNil(t, c.GeoLevels())
}

func TestLoadMalformedFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"datasets": {"educ": `), 0644))

	c := Load(path, 1)
	require.Error(t, c.LoadError())
	assert.Equal(t, 0, c.Len())
}

func TestDatasetViewFallbacks(t *testing.T) {
	c := Load(fixturePath, 1)

	got, err := c.Dataset("pers_sup65ans_seules")
	require.NoError(t, err)

	want := DatasetView{
		ID:         "pers_sup65ans_seules",
		Name:       "pers_sup65ans_seules",
		FolderPath: "",
		FileName:   "pers_sup65ans_seules",
		Sheets:     []string{"com", "reg", "dom", "fh", "fra"},
		Variables:  []string{"part_seules"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dataset() mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetsAndDatasetAgree(t *testing.T) {
	c := Load(fixturePath, 1)

	all := c.Datasets()
	require.Len(t, all, 3)
	for id, listed := range all {
		single, err := c.Dataset(id)
		require.NoError(t, err)
		if diff := cmp.Diff(listed, single); diff != "" {
			t.Errorf("view mismatch for %s (-datasets +dataset):\n%s", id, diff)
		}
	}

	educ := all["educ"]
	assert.Equal(t, "Éducation - Scolarisation", educ.Name)
	assert.Equal(t, "Education/Scolarisation", educ.FolderPath)
	assert.Equal(t, []string{"com", "reg", "fra"}, educ.Sheets)
	assert.Equal(t, []string{"tx_scol_2_5", "tx_scol_18_24", "nb_eleves"}, educ.Variables)
}

func TestDefaultSheetsNotShared(t *testing.T) {
	c := Load(fixturePath, 1)

	v, err := c.Dataset("sae")
	require.NoError(t, err)
	v.Sheets[0] = "mutated"

	assert.Equal(t, "com", DefaultSheets[0])
}

func TestDatasetNotFound(t *testing.T) {
	c := Load(fixturePath, 1)

	_, err := c.Dataset("unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestColumnParserName(t *testing.T) {
	assert.Equal(t, ParserMoca, Column{}.ParserName())
	assert.Equal(t, ParserLong, Column{Parser: ParserLong}.ParserName())
	assert.True(t, Column{Parser: ParserExternal}.IsExternal())
}
