package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	allowOrigin  = "*"
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type"
)

// SetupRoutes configures all routes. The API is mounted both at the root
// and under /api; everything else falls through to the frontend.
func SetupRoutes(h *Handlers, hc *HealthChecker, frontendDist string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{allowOrigin},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{allowHeaders},
		OptionsPassthrough: true,
		MaxAge:             300,
	}))
	r.Use(permissiveCORS)

	registerAPI(r, h, hc)
	r.Route("/api", func(r chi.Router) {
		registerAPI(r, h, hc)
	})

	r.Get("/*", spaHandler(frontendDist))

	return r
}

func registerAPI(r chi.Router, h *Handlers, hc *HealthChecker) {
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Get("/themes", h.GetThemes)
	r.Get("/datasets", h.GetDatasets)
	r.Get("/dataset-info", h.GetDatasetInfo)
	r.Get("/available-years", h.GetAvailableYears)
	r.Get("/check-csv", h.CheckCSV)
	r.Post("/reload-config", h.ReloadConfig)

	r.Post("/generate", h.Generate)
	r.Get("/download/*", h.Download)
	r.Get("/files", h.ListFiles)
	r.Get("/history", h.GetHistory)

	r.Get("/admin/users", h.GetAdminUsers)
}

// permissiveCORS runs after cors.Handler. The library owns preflight
// negotiation (Vary, Max-Age) but skips requests without an Origin and echoes
// only the requested method. The frontend contract is the fixed allow-list on
// every response and an empty 200 for any OPTIONS, so this layer sets those.
func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", allowOrigin)
		hdr.Set("Access-Control-Allow-Methods", allowMethods)
		hdr.Set("Access-Control-Allow-Headers", allowHeaders)
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
