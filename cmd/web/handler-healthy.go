package main

import (
	"log/slog"
	"net/http"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
)

// healthy responds with a JSON object indicating that the server and its database are healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.db.Ping(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "database ping failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
