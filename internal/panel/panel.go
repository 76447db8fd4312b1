package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler for the status panel.
//
// When dir names an existing directory the page is served from disk,
// otherwise from the embedded copy. Assets are small and unhashed, so
// every response is marked no-cache.
// Panics if the embedded assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	fileServer := http.FileServer(http.FS(assets(dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}

func assets(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}

	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	return webFS
}
