package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed preview.html
var previewPage []byte

// PreviewPageHandler serves the live preview page on "/".
func PreviewPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(previewPage)
}
