package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orsg/prisme/internal/generation"
	"github.com/orsg/prisme/internal/pkg/httputil"
	"github.com/orsg/prisme/internal/pkg/logger"
	"github.com/orsg/prisme/internal/storage"
)

type generateResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Generate runs the report engine for one dataset and year and waits for it.
//
//	POST /generate?theme=educ&year=2022
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	theme := httputil.QueryParam(r, "theme", "dataset")
	year := httputil.QueryParam(r, "year")

	if err := generation.ValidateRequest(theme, year); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if _, ok := h.catalog.Current().Lookup(theme); !ok {
		httputil.NotFound(w, "Dataset not found: "+theme)
		return
	}

	logger.Info("generation requested", "dataset", theme, "year", year, "request_id", requestID(r))
	out, err := h.runs.Run(r.Context(), theme, year)
	if err != nil {
		httputil.JSON(w, http.StatusInternalServerError, generateResponse{Error: err.Error(), ID: out.ID})
		return
	}
	if !out.Success {
		httputil.JSON(w, http.StatusInternalServerError, generateResponse{Error: out.Error, ID: out.ID})
		return
	}
	httputil.OK(w, generateResponse{
		Success:  true,
		Filename: out.Filename,
		Message:  "File generated: " + out.Filename,
		ID:       out.ID,
	})
}

// Download streams one report as an attachment. The route is a wildcard so
// names carrying separators reach validation instead of the SPA fallback.
//
//	GET /download/{filename}
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		httputil.BadRequest(w, storage.ErrInvalidName.Error())
		return
	}

	f, info, err := h.output.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, "File not found: "+name)
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", storage.ContentType(name))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("download interrupted", "file", name, "error", err)
		return
	}
	logger.Info("report served", "file", name, "bytes", info.Size())
}

// ListFiles lists downloadable reports, newest first.
//
//	GET /files
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.output.List()
	if err != nil {
		logger.Error("listing output dir failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Error reading output directory")
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "files": files})
}

// GetHistory lists recent generation runs.
//
//	GET /history?limit=50
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	records, err := h.runs.History().List(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"success": true, "history": records})
}

// GetAdminUsers returns the demo user directory, optionally filtered.
//
//	GET /admin/users?q=
func (h *Handlers) GetAdminUsers(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	users := make([]interface{}, 0, len(h.adminUsers))
	for _, u := range h.adminUsers {
		if q != "" &&
			!strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) &&
			!strings.Contains(strings.ToLower(u.Department), q) {
			continue
		}
		users = append(users, u)
	}
	httputil.OK(w, map[string]interface{}{"success": true, "users": users})
}
