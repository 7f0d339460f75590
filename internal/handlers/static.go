package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed placeholder.svg
var placeholderSVG []byte

// HandlePlaceholder serves the image used for records without one.
func (h *Handler) HandlePlaceholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(placeholderSVG); err != nil {
		h.writeError(w, "Unable to write placeholder", http.StatusInternalServerError)
	}
}
