package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
)

const maxRequestBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, "client error", slog.Int("status", status),
		slog.String("reason", msg))
	app.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to write response", errors.SlogError(err))
	}
}

// decodeJSON decodes the request body into dst. On failure it responds with 400 Bad Request and returns false.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseSetOrderParam parses the "setOrder" path parameter. Set orders start at 1.
// On failure, sends HTTP 404 response automatically.
func (app *application) parseSetOrderParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	setOrder, err := strconv.Atoi(r.PathValue("setOrder"))
	if err != nil || setOrder < 1 {
		app.notFound(w, r)
		return 0, false
	}
	return setOrder, true
}
