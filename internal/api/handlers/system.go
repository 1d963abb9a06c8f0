package handlers

import (
	"net/http"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/version"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

// SystemHandler handles liveness and version requests.
type SystemHandler struct {
	session *viewer.Session
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(session *viewer.Session) *SystemHandler {
	return &SystemHandler{session: session}
}

// HealthResponse reports liveness and whether a catalog is loaded.
type HealthResponse struct {
	Status        string `json:"status"`
	CatalogLoaded bool   `json:"catalogLoaded"`
	Cards         int    `json:"cards"`
	Version       string `json:"version"`
}

// Health returns the server status.
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		CatalogLoaded: h.session.Loaded(),
		Cards:         h.session.Len(),
		Version:       version.Version,
	})
}
