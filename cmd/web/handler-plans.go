package main

import (
	"net/http"
	"strings"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
)

type exerciseRequest struct {
	Name      string   `json:"name"`
	Muscles   []string `json:"muscles"`
	Equipment string   `json:"equipment"`
}

func (app *application) exercisePOST(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		app.clientError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	ex, err := app.workoutService.CreateExercise(r.Context(), workout.Exercise{
		ID:        "",
		Name:      strings.TrimSpace(req.Name),
		Muscles:   req.Muscles,
		Equipment: req.Equipment,
	})
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "create exercise"))
		return
	}
	app.writeJSON(w, r, http.StatusCreated, ex)
}

func (app *application) exercisesGET(w http.ResponseWriter, r *http.Request) {
	exercises, err := app.workoutService.ListExercises(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "list exercises"))
		return
	}
	if exercises == nil {
		exercises = []workout.Exercise{}
	}
	app.writeJSON(w, r, http.StatusOK, exercises)
}

// exerciseSuggestionGET computes the progression target of an exercise for the rep scheme in the reps_target query
// parameter.
func (app *application) exerciseSuggestionGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exerciseID := r.PathValue("exerciseID")
	if _, err := app.workoutService.GetExercise(ctx, exerciseID); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "get exercise"))
		return
	}

	suggestion, err := app.workoutService.Suggest(ctx, exerciseID, r.URL.Query().Get("reps_target"), "")
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "suggest"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, suggestion)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (app *application) programPOST(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		app.clientError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	program, err := app.workoutService.CreateProgram(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "create program"))
		return
	}
	app.writeJSON(w, r, http.StatusCreated, program)
}

func (app *application) sessionPOST(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		app.clientError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	session, err := app.workoutService.CreateSession(r.Context(), r.PathValue("programID"), strings.TrimSpace(req.Name))
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "create session"))
		return
	}
	app.writeJSON(w, r, http.StatusCreated, session)
}

type sessionExerciseRequest struct {
	ExerciseID   string   `json:"exercise_id"`
	SetsTarget   int      `json:"sets_target"`
	RepsTarget   *string  `json:"reps_target"`
	WeightTarget *float64 `json:"weight_target"`
}

func (app *application) sessionExercisePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sessionExerciseRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if req.SetsTarget < 0 || (req.WeightTarget != nil && *req.WeightTarget < 0) {
		app.clientError(w, r, http.StatusBadRequest, "targets must not be negative")
		return
	}

	sessionID := r.PathValue("sessionID")
	if _, err := app.workoutService.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "get session"))
		return
	}
	if _, err := app.workoutService.GetExercise(ctx, req.ExerciseID); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.clientError(w, r, http.StatusBadRequest, "unknown exercise")
			return
		}
		app.serverError(w, r, errors.Wrap(err, "get exercise"))
		return
	}

	se, err := app.workoutService.AddSessionExercise(ctx, workout.SessionExercise{
		ID:           "",
		SessionID:    sessionID,
		ExerciseID:   req.ExerciseID,
		SetsTarget:   req.SetsTarget,
		RepsTarget:   req.RepsTarget,
		WeightTarget: req.WeightTarget,
		Position:     0,
	})
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "add session exercise"))
		return
	}
	app.writeJSON(w, r, http.StatusCreated, se)
}
