// Package site serves the embedded coverage map page.
package site

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
)

// ErrServe is written when the map page cannot be read from the asset FS.
var ErrServe = errors.New("site serve failed")

const indexFile = "index.html"

// Register attaches the map page and its assets to mux.
//
//	GET /         -> map page
//	GET /static/  -> embedded assets
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("site: nil mux")
	}
	root := NewRootHandler()
	mux.HandleFunc("GET /{$}", root.HandleRoot)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(FS())))
}

// RootHandler serves the map page.
type RootHandler struct {
	files fs.FS
}

// NewRootHandler creates a new root handler over the embedded assets.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: staticSub()}
}

// HandleRoot handles GET / and writes the map page.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	page, err := fs.ReadFile(h.files, indexFile)
	if err != nil {
		http.Error(w, ErrServe.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}
