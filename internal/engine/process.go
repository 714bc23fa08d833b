package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orsg/prisme/internal/config"
	"github.com/orsg/prisme/internal/pkg/logger"
)

// ProcessEngine runs the report engine as a child interpreter process.
// Every call gets its own script file, so concurrent calls never share one.
type ProcessEngine struct {
	interpreter string
	workDir     string
	scriptDir   string
	scriptExt   string
	outputDir   string
	timeout     time.Duration
	verify      bool
	renderer    *Renderer
}

// NewProcessEngine builds an engine from configuration.
func NewProcessEngine(cfg config.EngineConfig, outputDir, csvDir string) (*ProcessEngine, error) {
	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("engine: work dir: %w", err)
	}
	scriptDir := cfg.ScriptDir
	if scriptDir == "" {
		scriptDir = os.TempDir()
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("engine: output dir: %w", err)
	}

	r, err := NewRenderer(ScriptParams{
		WorkDir:       workDir,
		Module:        cfg.Module,
		Function:      cfg.Function,
		YearsFunction: cfg.YearsFunction,
		OutputDir:     absOut,
		CSVDir:        csvDir,
	}, cfg.GenerateTemplate, cfg.YearsTemplate)
	if err != nil {
		return nil, err
	}

	return &ProcessEngine{
		interpreter: cfg.Interpreter,
		workDir:     workDir,
		scriptDir:   scriptDir,
		scriptExt:   cfg.ScriptExt,
		outputDir:   absOut,
		timeout:     cfg.Timeout(),
		verify:      cfg.ShouldVerifyOutput(),
		renderer:    r,
	}, nil
}

// Generate renders the driver, runs it and interprets its output.
func (e *ProcessEngine) Generate(ctx context.Context, datasetID, year string) (Result, error) {
	src, err := e.renderer.Generate(datasetID, year)
	if err != nil {
		return Result{}, err
	}

	tag := datasetID + "_" + year
	logger.Info("generation started", "dataset", datasetID, "year", year, "interpreter", e.interpreter)
	out, err := e.runScript(ctx, src, tag)
	if err != nil && !out.Killed {
		return Result{}, err
	}

	res := ParseOutcome(out.Stdout, out.Stderr)
	if out.Killed {
		res = Result{Error: err.Error()}
	}
	res.ExitCode = out.ExitCode
	res.Duration = out.Duration
	res.Logs = append(append([]string{}, out.Stdout...), out.Stderr...)

	if res.Success && e.verify {
		if verr := VerifyOutput(e.outputDir, res.Filename); verr != nil {
			logger.Warn("engine output failed verification", "dataset", datasetID, "year", year, "file", res.Filename, "error", verr)
			res.Success = false
			res.Error = verr.Error()
			res.Filename = ""
		}
	}

	if res.Success {
		logger.Info("generation succeeded", "dataset", datasetID, "year", year, "file", res.Filename,
			"exit_code", res.ExitCode, "duration_ms", res.Duration.Milliseconds())
	} else {
		logger.Warn("generation failed", "dataset", datasetID, "year", year,
			"exit_code", res.ExitCode, "error", firstLine(res.Error))
	}
	return res, nil
}

// AvailableYears runs the years driver for a dataset.
func (e *ProcessEngine) AvailableYears(ctx context.Context, datasetID string) ([]int, error) {
	src, err := e.renderer.Years(datasetID)
	if err != nil {
		return nil, err
	}
	out, err := e.runScript(ctx, src, datasetID+"_years")
	if err != nil {
		return nil, err
	}
	years, perr := ParseYears(out.Stdout)
	if perr != nil {
		detail := ParseOutcome(out.Stdout, out.Stderr).Error
		return nil, fmt.Errorf("%w: %s", perr, detail)
	}
	return years, nil
}

// runScript writes src to a uniquely named file, runs it and removes it.
func (e *ProcessEngine) runScript(ctx context.Context, src, tag string) (Output, error) {
	if err := os.MkdirAll(e.scriptDir, 0755); err != nil {
		return Output{}, fmt.Errorf("engine: script dir: %w", err)
	}
	path := filepath.Join(e.scriptDir, "prisme_run_"+uuid.NewString()+e.scriptExt)
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		return Output{}, fmt.Errorf("engine: write script: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("engine script not removed", "path", path, "error", err)
		}
	}()

	return Run(ctx, Command{
		Binary:  e.interpreter,
		Args:    []string{path},
		Dir:     e.workDir,
		Timeout: e.timeout,
		Tag:     tag,
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
