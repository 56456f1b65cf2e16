// Package web embeds the demo chat page (dist/) and serves it.
//
// Storefronts embed their own chat widget; the page here talks to /ws/chat
// and is meant for local testing.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// SPAHandler serves files from dist/ and falls back to index.html for any
// path that is not a file, so the page can be opened at product URLs.
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	index, err := fs.ReadFile(subFS, indexFile)
	if err != nil {
		panic("web: missing " + indexFile + ": " + err.Error())
	}
	files := http.FileServerFS(subFS)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" && name != indexFile {
			if info, err := fs.Stat(subFS, name); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(index)
	})
}
