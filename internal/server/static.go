package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves files from dir and falls back to index.html so the
// front-end router can handle deep links. Unknown /api paths stay JSON 404s.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			apiNotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			apiNotFound(w, r)
			return
		}

		clean := path.Clean("/" + r.URL.Path)
		if clean != "/" {
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean)))
			if err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		http.ServeFile(w, r, index)
	}
}
