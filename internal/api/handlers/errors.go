package handlers

import (
	"errors"
	"net/http"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/logger"
	"github.com/ramonehamilton/card-catalog/internal/preferences"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

// respond writes data, or maps err onto a status. Persistence failures are
// warnings: the change was applied, so the data is still returned.
func respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(w, data)
	case preferences.IsPersistError(err):
		logger.FromContext(r.Context()).Warn().Err(err).Msg("preference change not persisted")
		response.SuccessWithWarning(w, data, err)
	case errors.Is(err, viewer.ErrNotLoaded):
		response.ServiceUnavailable(w, err)
	case errors.Is(err, preferences.ErrUnknownCard):
		response.NotFound(w, err)
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		response.InternalError(w, err)
	}
}
