package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

// maxImportSize bounds an uploaded favorites CSV.
const maxImportSize = 10 << 20

// FavoritesHandler serves the favorites and ignored lists.
type FavoritesHandler struct {
	session *viewer.Session
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(session *viewer.Session) *FavoritesHandler {
	return &FavoritesHandler{session: session}
}

// ClearResponse reports how many entries a clear removed.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// List returns the favorite cards.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.session.Loaded() {
		respond(w, r, nil, viewer.ErrNotLoaded)
		return
	}
	response.Success(w, h.session.Favorites())
}

// Clear removes every favorite.
func (h *FavoritesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.session.ClearFavorites(r.Context())
	respond(w, r, ClearResponse{Cleared: n}, err)
}

// ClearIgnored restores every ignored card.
func (h *FavoritesHandler) ClearIgnored(w http.ResponseWriter, r *http.Request) {
	n, err := h.session.ClearIgnored(r.Context())
	respond(w, r, ClearResponse{Cleared: n}, err)
}

// Export downloads the favorites as CSV.
func (h *FavoritesHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.session.ExportFavorites(&buf); err != nil {
		response.InternalError(w, err)
		return
	}
	response.CSV(w, "favorites.csv", buf.Bytes())
}

// Import reads a favorites CSV from the request body.
func (h *FavoritesHandler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportSize)
	data, err := io.ReadAll(body)
	if err != nil {
		response.BadRequest(w, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := h.session.ImportFavorites(r.Context(), bytes.NewReader(data))
	if errors.Is(err, viewer.ErrEmptyImport) {
		response.BadRequest(w, err)
		return
	}
	respond(w, r, result, err)
}
