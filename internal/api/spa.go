package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var staticContentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".txt":   "text/plain; charset=utf-8",
}

func staticContentType(name string) string {
	if ct, ok := staticContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// spaHandler serves the built frontend and falls back to index.html for
// client-side routes. When the dist directory is absent everything is 404.
func spaHandler(distDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if info, err := os.Stat(distDir); err != nil || !info.IsDir() {
			http.NotFound(w, req)
			return
		}

		// path.Clean on a rooted path cannot climb above "/".
		clean := path.Clean("/" + req.URL.Path)
		filePath := filepath.Join(distDir, filepath.FromSlash(clean))

		if info, err := os.Stat(filePath); err == nil && info.Mode().IsRegular() {
			serveStatic(w, req, filePath)
			return
		}

		indexPath := filepath.Join(distDir, "index.html")
		if info, err := os.Stat(indexPath); err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, req)
			return
		}
		serveStatic(w, req, indexPath)
	}
}

func serveStatic(w http.ResponseWriter, req *http.Request, filePath string) {
	f, err := os.Open(filePath)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", staticContentType(filePath))
	http.ServeContent(w, req, "", info.ModTime(), f)
}
