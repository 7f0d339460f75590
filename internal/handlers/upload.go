package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/proofofsteak/steakboard/internal/images"
	"github.com/proofofsteak/steakboard/internal/upload"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

func (h *Handler) HandleUploadStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"configured":    h.uploads != nil,
		"max_bytes":     upload.MaxSize,
		"allowed_types": []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
		"folder":        upload.Folder,
	})
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		h.writeError(w, upload.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}

	// Check if this is a JSON request with image URL
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		h.handleURLUpload(w, r)
		return
	}
	h.handleFileUpload(w, r)
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ImageURL    string `json:"image_url"`
		Name        string `json:"name"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	img, err := h.fetcher.Fetch(r.Context(), request.ImageURL)
	if errors.Is(err, images.ErrTooLarge) {
		h.writeError(w, upload.ErrTooLarge.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to fetch image: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.storeImage(w, r, img.Data, img.ContentType, upload.Metadata{
		Filename:    img.Filename,
		Name:        request.Name,
		Location:    request.Location,
		Description: request.Description,
	})
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+formOverhead)

	file, header, err := r.FormFile("image")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			h.writeError(w, "No image provided", http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	if err := upload.Validate(header.Header.Get("Content-Type"), header.Size); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Read one byte past the limit so oversized bodies are caught
	fileData, err := io.ReadAll(io.LimitReader(file, upload.MaxSize+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.storeImage(w, r, fileData, header.Header.Get("Content-Type"), upload.Metadata{
		Filename:    header.Filename,
		Name:        r.FormValue("name"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
	})
}

func (h *Handler) storeImage(w http.ResponseWriter, r *http.Request, data []byte, declared string, meta upload.Metadata) {
	info, err := inspectImage(data, declared)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.uploads.Upload(r.Context(), bytes.NewReader(data), meta)
	if err != nil {
		h.writeError(w, "Failed to upload image: "+err.Error(), http.StatusBadGateway)
		return
	}
	if result.Width == 0 && result.Height == 0 {
		result.Width, result.Height = info.Width, info.Height
	}

	h.writeJSON(w, map[string]any{
		"success":         true,
		"original_url":    result.OriginalURL,
		"leaderboard_url": result.LeaderboardURL,
		"analysis_url":    result.PreviewURL,
		"public_id":       result.PublicID,
		"metadata":        result,
	})
}
