package notehub

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notehub-io/notehub/pkg/store"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the store's sentinel errors onto HTTP statuses.
func (a *App) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.log.Error().Err(err).Msg("internal error")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
