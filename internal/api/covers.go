package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	coversDir      = "covers"
	maxUploadBytes = 20 << 20 // 20 MB
)

// CoverHandler serves and accepts post cover images.
type CoverHandler struct {
	contentRoot string
}

// NewCoverHandler creates a handler rooted at the posts directory.
func NewCoverHandler(contentRoot string) *CoverHandler {
	return &CoverHandler{contentRoot: contentRoot}
}

func (h *CoverHandler) coversPath() string {
	return filepath.Join(h.contentRoot, coversDir)
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the covers dir.
func (h *CoverHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.coversPath(), cleaned)
	if !strings.HasPrefix(abs, h.coversPath()+string(os.PathSeparator)) && abs != h.coversPath() {
		return "", fmt.Errorf("path escapes covers directory")
	}
	return abs, nil
}

// ServeFile handles GET /covers/{filename}.
func (h *CoverHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/covers (multipart/form-data, field "file").
func (h *CoverHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	abs, err := h.safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if err := os.MkdirAll(h.coversPath(), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create covers dir"))
		return
	}

	dst, err := os.Create(abs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	writeJSON(w, http.StatusCreated, CoverUploadResponse{
		Filename: header.Filename,
		Size:     written,
		URL:      "/covers/" + header.Filename,
	})
}
