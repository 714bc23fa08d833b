package engine

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/osteele/liquid"
)

//go:embed templates/*.liquid
var builtinTemplates embed.FS

var (
	moduleRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	functionRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	yearRe     = regexp.MustCompile(`^\d{4}$`)
)

// ScriptParams are the values bound into a driver template.
type ScriptParams struct {
	WorkDir       string
	Module        string
	Function      string
	YearsFunction string
	OutputDir     string
	CSVDir        string
}

// Renderer turns the generate and years templates into driver scripts.
type Renderer struct {
	params   ScriptParams
	generate *liquid.Template
	years    *liquid.Template
}

// NewRenderer parses the templates. Empty paths select the built-in Python
// drivers.
func NewRenderer(params ScriptParams, generatePath, yearsPath string) (*Renderer, error) {
	if !moduleRe.MatchString(params.Module) {
		return nil, fmt.Errorf("engine: invalid module name %q", params.Module)
	}
	for _, fn := range []string{params.Function, params.YearsFunction} {
		if !functionRe.MatchString(fn) {
			return nil, fmt.Errorf("engine: invalid function name %q", fn)
		}
	}

	eng := liquid.NewEngine()
	// {{ value | quote }} emits a double-quoted literal valid in Python and sh.
	eng.RegisterFilter("quote", func(value interface{}) string {
		return strconv.Quote(fmt.Sprint(value))
	})

	gen, err := parseTemplate(eng, generatePath, "templates/generate.py.liquid")
	if err != nil {
		return nil, err
	}
	yrs, err := parseTemplate(eng, yearsPath, "templates/years.py.liquid")
	if err != nil {
		return nil, err
	}
	return &Renderer{params: params, generate: gen, years: yrs}, nil
}

func parseTemplate(eng *liquid.Engine, path, builtin string) (*liquid.Template, error) {
	var src []byte
	var err error
	if path != "" {
		src, err = os.ReadFile(path)
	} else {
		src, err = builtinTemplates.ReadFile(builtin)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: read template: %w", err)
	}
	tpl, perr := eng.ParseTemplate(src)
	if perr != nil {
		return nil, fmt.Errorf("engine: parse template %s: %w", templateName(path, builtin), perr)
	}
	return tpl, nil
}

func templateName(path, builtin string) string {
	if path != "" {
		return path
	}
	return builtin
}

// Generate renders the driver for one generation.
func (r *Renderer) Generate(datasetID, year string) (string, error) {
	b := r.bindings(datasetID)
	b["year"] = year
	b["year_literal"] = yearLiteral(year)
	out, err := r.generate.RenderString(b)
	if err != nil {
		return "", fmt.Errorf("engine: render generate script: %w", err)
	}
	return out, nil
}

// Years renders the driver for a years probe.
func (r *Renderer) Years(datasetID string) (string, error) {
	out, err := r.years.RenderString(r.bindings(datasetID))
	if err != nil {
		return "", fmt.Errorf("engine: render years script: %w", err)
	}
	return out, nil
}

func (r *Renderer) bindings(datasetID string) liquid.Bindings {
	return liquid.Bindings{
		"work_dir":       r.params.WorkDir,
		"module":         r.params.Module,
		"function":       r.params.Function,
		"years_function": r.params.YearsFunction,
		"output_dir":     r.params.OutputDir,
		"csv_dir":        r.params.CSVDir,
		"dataset":        datasetID,
	}
}

// yearLiteral keeps single years numeric and quotes periods so "2015-2020"
// is never evaluated as a subtraction.
func yearLiteral(year string) string {
	if yearRe.MatchString(year) {
		return year
	}
	return strconv.Quote(year)
}
