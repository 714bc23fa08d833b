package api

import (
	"errors"
	"net/http"

	"github.com/orsg/prisme/internal/catalog"
	"github.com/orsg/prisme/internal/config"
	"github.com/orsg/prisme/internal/engine"
	"github.com/orsg/prisme/internal/generation"
	"github.com/orsg/prisme/internal/pkg/httputil"
	"github.com/orsg/prisme/internal/pkg/logger"
	"github.com/orsg/prisme/internal/storage"
)

// Handlers holds the dependencies of every HTTP handler.
type Handlers struct {
	catalog    *catalog.Store
	runs       *generation.Orchestrator
	generator  engine.ReportGenerator
	output     *storage.OutputDir
	csvDir     string
	adminUsers []config.AdminUser
}

// HandlerDeps groups what NewHandlers needs.
type HandlerDeps struct {
	Catalog      *catalog.Store
	Orchestrator *generation.Orchestrator
	Output       *storage.OutputDir
	CSVDir       string
	AdminUsers   []config.AdminUser
}

// NewHandlers creates the handler set.
func NewHandlers(d HandlerDeps) *Handlers {
	return &Handlers{
		catalog:    d.Catalog,
		runs:       d.Orchestrator,
		generator:  d.Orchestrator.Generator(),
		output:     d.Output,
		csvDir:     d.CSVDir,
		adminUsers: d.AdminUsers,
	}
}

// GetThemes returns the configured theme tree and geographic levels.
//
//	GET /themes
func (h *Handlers) GetThemes(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.Current()
	httputil.OK(w, map[string]interface{}{
		"success":   true,
		"themes":    c.ThemeTree(),
		"geoLevels": c.GeoLevels(),
	})
}

// GetDatasets returns the projected view of every dataset.
//
//	GET /datasets
func (h *Handlers) GetDatasets(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"success":  true,
		"datasets": h.catalog.Current().Datasets(),
	})
}

type datasetInfo struct {
	catalog.DatasetView
	CSVAvailability catalog.Availability `json:"csvAvailability"`
	AvailableYears  []int                `json:"availableYears"`
}

// GetDatasetInfo returns one dataset with its CSV availability and years.
//
//	GET /dataset-info?id=
func (h *Handlers) GetDatasetInfo(w http.ResponseWriter, r *http.Request) {
	id := httputil.QueryParam(r, "id", "dataset")
	if id == "" {
		httputil.BadRequest(w, "missing dataset id")
		return
	}

	// One snapshot for the whole request.
	c := h.catalog.Current()
	view, err := c.Dataset(id)
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.NotFound(w, "Dataset not found: "+id)
		return
	}
	av, err := c.CheckCSV(id, h.csvDir)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	years, err := h.generator.AvailableYears(r.Context(), id)
	if err != nil {
		logger.Warn("available years failed", "dataset", id, "error", err)
		years = []int{}
	}

	httputil.OK(w, map[string]interface{}{
		"success": true,
		"dataset": datasetInfo{DatasetView: view, CSVAvailability: av, AvailableYears: years},
	})
}

// GetAvailableYears asks the engine which years have data.
//
//	GET /available-years?dataset=
func (h *Handlers) GetAvailableYears(w http.ResponseWriter, r *http.Request) {
	id := httputil.QueryParam(r, "dataset", "id")
	if id == "" {
		httputil.JSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "years": []int{}, "error": "missing dataset parameter",
		})
		return
	}
	if _, ok := h.catalog.Current().Lookup(id); !ok {
		httputil.OK(w, map[string]interface{}{"success": true, "years": []int{}})
		return
	}

	years, err := h.generator.AvailableYears(r.Context(), id)
	if err != nil {
		logger.Error("available years failed", "dataset", id, "error", err)
		httputil.JSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false, "years": []int{}, "error": err.Error(),
		})
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "years": years})
}

// CheckCSV reports which CSV sources of a dataset are present.
//
//	GET /check-csv?dataset=
func (h *Handlers) CheckCSV(w http.ResponseWriter, r *http.Request) {
	id := httputil.QueryParam(r, "dataset", "id")
	if id == "" {
		httputil.BadRequest(w, "missing dataset parameter")
		return
	}
	av, err := h.catalog.Current().CheckCSV(id, h.csvDir)
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.NotFound(w, "Dataset not found: "+id)
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"success":   true,
		"available": av.Available,
		"found":     av.Found,
		"missing":   av.Missing,
	})
}

// ReloadConfig re-reads the themes document.
//
//	POST /reload-config
func (h *Handlers) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	c := h.catalog.Reload()
	logger.Info("themes config reloaded", "version", c.Version(), "datasets", c.Len())
	httputil.OK(w, map[string]interface{}{
		"success":  true,
		"message":  "Configuration reloaded",
		"version":  c.Version(),
		"datasets": c.Len(),
	})
}
