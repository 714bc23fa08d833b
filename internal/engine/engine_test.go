package engine

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"github.com/orsg/prisme/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEngine struct {
	*ProcessEngine
	outputDir string
	scriptDir string
}

// newShellEngine builds an engine running sh with the given templates.
func newShellEngine(t *testing.T, generate, years string, mutate func(*config.EngineConfig)) testEngine {
	t.Helper()
	root := t.TempDir()
	outputDir := filepath.Join(root, "output")
	scriptDir := filepath.Join(root, "scripts")
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	genPath := filepath.Join(root, "generate.sh.liquid")
	yearsPath := filepath.Join(root, "years.sh.liquid")
	require.NoError(t, os.WriteFile(genPath, []byte(generate), 0644))
	require.NoError(t, os.WriteFile(yearsPath, []byte(years), 0644))

	cfg := config.EngineConfig{
		Interpreter:      "sh",
		WorkDir:          root,
		ScriptDir:        scriptDir,
		ScriptExt:        ".sh",
		Module:           "prisme_engine",
		Function:         "generate_prisme_excel",
		YearsFunction:    "detect_available_years",
		GenerateTemplate: genPath,
		YearsTemplate:    yearsPath,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewProcessEngine(cfg, outputDir, filepath.Join(root, "csv"))
	require.NoError(t, err)
	return testEngine{ProcessEngine: e, outputDir: outputDir, scriptDir: scriptDir}
}

func noVerify(cfg *config.EngineConfig) {
	off := false
	cfg.VerifyOutput = &off
}

func writeZip(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("educ/educ_com_2022.xlsx")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func assertNoScriptsLeft(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transient scripts should be removed")
}

const yearsOK = `echo 'YEARS:[2019, 2021]'`

func TestGenerateSuccessVerified(t *testing.T) {
	e := newShellEngine(t, `
echo "building {{ dataset }} for {{ year }}"
echo "SUCCESS:{{ dataset }}_{{ year }}.zip"
`, yearsOK, nil)
	writeZip(t, filepath.Join(e.outputDir, "educ_2022.zip"))

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "educ_2022.zip", res.Filename)
	assert.Empty(t, res.Error)
	assert.Contains(t, res.Logs, "building educ for 2022")
	assertNoScriptsLeft(t, e.scriptDir)
}

func TestGenerateClaimedFileMissingFailsVerification(t *testing.T) {
	e := newShellEngine(t, `echo "SUCCESS:ghost_2022.zip"`, yearsOK, nil)

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Empty(t, res.Filename)
	assert.Contains(t, res.Error, "ghost_2022.zip not found")
}

func TestGenerateVerifiesWorkbook(t *testing.T) {
	e := newShellEngine(t, `echo "SUCCESS:{{ dataset }}_{{ year }}.xlsx"`, yearsOK, nil)

	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(filepath.Join(e.outputDir, "educ_2022.xlsx")))
	require.NoError(t, f.Close())

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.NoError(t, os.WriteFile(filepath.Join(e.outputDir, "educ_2023.xlsx"), []byte("not a workbook"), 0644))
	res, err = e.Generate(context.Background(), "educ", "2023")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a readable workbook")
}

func TestGenerateSuccessMarkerWinsOverExitCode(t *testing.T) {
	e := newShellEngine(t, `
echo "SUCCESS:{{ dataset }}_{{ year }}.zip"
echo "late warning" >&2
exit 3
`, yearsOK, noVerify)

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "educ_2022.zip", res.Filename)
	assert.Equal(t, 3, res.ExitCode)
}

func TestGenerateFailureUsesStderr(t *testing.T) {
	e := newShellEngine(t, `
echo "ERROR:Generation failed"
echo "Traceback: boom" >&2
exit 1
`, yearsOK, noVerify)

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "Traceback: boom", res.Error)
	assert.Equal(t, 1, res.ExitCode)
	assertNoScriptsLeft(t, e.scriptDir)
}

func TestGenerateFailureWithoutOutput(t *testing.T) {
	e := newShellEngine(t, `exit 2`, yearsOK, noVerify)

	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "Unknown error", res.Error)
}

func TestGeneratePeriodIsPassedAsString(t *testing.T) {
	e := newShellEngine(t, `echo "SUCCESS:{{ dataset }}_{{ year_literal }}.zip"`, yearsOK, noVerify)

	res, err := e.Generate(context.Background(), "educ", "2015-2020")
	require.NoError(t, err)
	assert.True(t, res.Success)
	// sh strips the quotes the literal carries.
	assert.Equal(t, "educ_2015-2020.zip", res.Filename)
}

func TestGenerateConcurrentCallsUseDistinctScripts(t *testing.T) {
	e := newShellEngine(t, `
sleep 0.1
echo "SUCCESS:$(basename "$0")"
`, yearsOK, noVerify)

	const n = 6
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Generate(context.Background(), "educ", "2022")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		require.True(t, r.Success)
		assert.True(t, strings.HasPrefix(r.Filename, "prisme_run_"))
		seen[r.Filename] = true
	}
	assert.Len(t, seen, n)
	assertNoScriptsLeft(t, e.scriptDir)
}

func TestGenerateTimeoutKillsProcess(t *testing.T) {
	e := newShellEngine(t, `exec sleep 5`, yearsOK, func(cfg *config.EngineConfig) {
		cfg.TimeoutSeconds = 1
	})

	start := time.Now()
	res, err := e.Generate(context.Background(), "educ", "2022")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "killed after")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestGenerateInterpreterMissing(t *testing.T) {
	e := newShellEngine(t, `echo hi`, yearsOK, func(cfg *config.EngineConfig) {
		cfg.Interpreter = "/nonexistent/interpreter"
	})

	_, err := e.Generate(context.Background(), "educ", "2022")
	require.Error(t, err)
	assertNoScriptsLeft(t, e.scriptDir)
}

func TestGenerateIgnoresCallerCancellationWhenDetached(t *testing.T) {
	e := newShellEngine(t, `
sleep 0.2
echo "SUCCESS:done.zip"
`, yearsOK, noVerify)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Generate(context.WithoutCancel(ctx), "educ", "2022")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAvailableYears(t *testing.T) {
	e := newShellEngine(t, `echo`, `
echo "probing {{ dataset }}"
echo 'YEARS:[2019, 2020, 2022]'
`, nil)

	years, err := e.AvailableYears(context.Background(), "educ")
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020, 2022}, years)
}

func TestAvailableYearsFailure(t *testing.T) {
	e := newShellEngine(t, `echo`, `
echo "ModuleNotFoundError: pandas" >&2
exit 1
`, nil)

	_, err := e.AvailableYears(context.Background(), "educ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoYears)
	assert.Contains(t, err.Error(), "ModuleNotFoundError")
}
