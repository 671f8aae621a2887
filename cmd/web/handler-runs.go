package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
)

type runResponse struct {
	RunID       string                          `json:"run_id"`
	Session     workout.Session                 `json:"session"`
	Exercises   []workout.SessionExercise       `json:"exercises"`
	Drafts      map[string]workout.SetDraft     `json:"drafts"`
	Validated   map[string]workout.ValidatedSet `json:"validated"`
	TotalVolume float64                         `json:"total_volume"`
	Suggestions map[string]workout.Suggestion   `json:"suggestions,omitempty"`
}

func newRunResponse(live *workout.LiveSession) runResponse {
	snapshot := live.Engine.Snapshot()
	exercises := live.Exercises
	if exercises == nil {
		exercises = []workout.SessionExercise{}
	}
	return runResponse{
		RunID:       snapshot.RunID,
		Session:     live.Session,
		Exercises:   exercises,
		Drafts:      snapshot.Drafts,
		Validated:   snapshot.Validated,
		TotalVolume: snapshot.TotalVolume,
		Suggestions: nil,
	}
}

// liveSession resolves the runID path parameter to a live session. On failure it responds with 404 Not Found.
func (app *application) liveSession(w http.ResponseWriter, r *http.Request) (*workout.LiveSession, bool) {
	runID := r.PathValue("runID")
	live, ok := app.sessions.get(runID)
	if !ok {
		app.notFound(w, r)
		return nil, false
	}
	return live, true
}

func withRunAttrs(r *http.Request, runID string) *http.Request {
	return r.WithContext(logging.WithAttrs(r.Context(), slog.String("run_id", runID)))
}

// runStartPOST starts a live session and waits for its run to be stored.
func (app *application) runStartPOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	live, err := app.workoutService.StartSession(ctx, r.PathValue("sessionID"), time.Now())
	if err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "start session"))
		return
	}

	runID, err := live.Engine.WaitRun(ctx)
	if err != nil {
		live.Engine.Close()
		app.serverError(w, r, errors.Wrap(err, "wait for run"))
		return
	}
	app.sessions.add(runID, live)
	app.logger.LogAttrs(ctx, slog.LevelInfo, "started live session", slog.String("run_id", runID))

	app.writeJSON(w, r, http.StatusCreated, newRunResponse(live))
}

func (app *application) runGET(w http.ResponseWriter, r *http.Request) {
	live, ok := app.liveSession(w, r)
	if !ok {
		return
	}
	resp := newRunResponse(live)
	r = withRunAttrs(r, resp.RunID)

	suggestions, err := app.workoutService.SuggestAll(r.Context(), live.Exercises, resp.RunID)
	if err != nil {
		// Suggestions are informational, the session stays usable without them.
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to compute suggestions", errors.SlogError(err))
	} else {
		resp.Suggestions = suggestions
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

type inputRequest struct {
	Field workout.DraftField `json:"field"`
	Value string             `json:"value"`
}

func (app *application) runInputPUT(w http.ResponseWriter, r *http.Request) {
	live, ok := app.liveSession(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if req.Field != workout.FieldWeight && req.Field != workout.FieldReps {
		app.clientError(w, r, http.StatusBadRequest, fmt.Sprintf("field must be %q or %q",
			workout.FieldWeight, workout.FieldReps))
		return
	}
	live.Engine.UpdateSetInput(r.PathValue("slot"), req.Field, req.Value)
	w.WriteHeader(http.StatusNoContent)
}

type setResponse struct {
	Slot        string                `json:"slot"`
	Validated   bool                  `json:"validated"`
	Set         *workout.ValidatedSet `json:"set,omitempty"`
	TotalVolume float64               `json:"total_volume"`
}

// slotRequest resolves the session exercise and set order of a set slot route.
func (app *application) slotRequest(
	w http.ResponseWriter,
	r *http.Request,
) (*workout.LiveSession, workout.SessionExercise, int, bool) {
	live, ok := app.liveSession(w, r)
	if !ok {
		return nil, workout.SessionExercise{}, 0, false
	}
	se, ok := live.SessionExercise(r.PathValue("sessionExerciseID"))
	if !ok {
		app.notFound(w, r)
		return nil, workout.SessionExercise{}, 0, false
	}
	setOrder, ok := app.parseSetOrderParam(w, r)
	if !ok {
		return nil, workout.SessionExercise{}, 0, false
	}
	return live, se, setOrder, true
}

func (app *application) slotView(live *workout.LiveSession, key string) setResponse {
	resp := setResponse{Slot: key, Validated: false, Set: nil, TotalVolume: live.Engine.TotalVolume()}
	if v, ok := live.Engine.ValidatedSet(key); ok {
		resp.Validated = true
		resp.Set = &v
	}
	return resp
}

func (app *application) setValidatePOST(w http.ResponseWriter, r *http.Request) {
	live, se, setOrder, ok := app.slotRequest(w, r)
	if !ok {
		return
	}
	key := workout.SlotKey(se.ID, setOrder)
	if !live.Engine.ValidateSet(r.Context(), se, setOrder) {
		app.writeJSON(w, r, http.StatusUnprocessableEntity, app.slotView(live, key))
		return
	}
	app.writeJSON(w, r, http.StatusOK, app.slotView(live, key))
}

func (app *application) setValidateDELETE(w http.ResponseWriter, r *http.Request) {
	live, se, setOrder, ok := app.slotRequest(w, r)
	if !ok {
		return
	}
	key := workout.SlotKey(se.ID, setOrder)
	if !live.Engine.UnvalidateSet(r.Context(), se, setOrder) {
		app.writeJSON(w, r, http.StatusUnprocessableEntity, app.slotView(live, key))
		return
	}
	app.writeJSON(w, r, http.StatusOK, app.slotView(live, key))
}

// runCompletePOST ends the run, closes its live session and responds with the run summary.
func (app *application) runCompletePOST(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	r = withRunAttrs(r, runID)
	ctx := r.Context()

	if err := app.workoutService.CompleteRun(ctx, runID, time.Now()); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "complete run"))
		return
	}
	app.sessions.remove(runID)

	summary, err := app.workoutService.RunSummary(ctx, runID)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "run summary"))
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "completed run",
		slog.Float64("total_volume", summary.TotalVolume), slog.Int("pr_count", summary.PRCount))
	app.writeJSON(w, r, http.StatusOK, summary)
}

func (app *application) runSummaryGET(w http.ResponseWriter, r *http.Request) {
	summary, err := app.workoutService.RunSummary(r.Context(), r.PathValue("runID"))
	if err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "run summary"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, summary)
}

type noteRequest struct {
	Note *string `json:"note"`
}

func (app *application) runNotePUT(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !app.decodeJSON(w, r, &req) {
		return
	}
	if err := app.workoutService.UpdateRunNote(r.Context(), r.PathValue("runID"), req.Note); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "update run note"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runDELETE hides a run from history and discards its live session.
func (app *application) runDELETE(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	if err := app.workoutService.DeleteRun(r.Context(), runID); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "delete run"))
		return
	}
	app.sessions.remove(runID)
	w.WriteHeader(http.StatusNoContent)
}

// runSetsStreamGET streams the persisted sets of a run as server-sent events until the client disconnects or the
// server shuts down.
func (app *application) runSetsStreamGET(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	r = withRunAttrs(r, runID)
	if _, err := app.workoutService.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, workout.ErrNotFound) {
			app.notFound(w, r)
			return
		}
		app.serverError(w, r, errors.Wrap(err, "get run"))
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear write deadline"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(app.shutdownCtx, cancel)
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	for sets := range app.workoutService.ObserveRunSets(ctx, runID) {
		if sets == nil {
			sets = []workout.LoggedSet{}
		}
		data, err := json.Marshal(sets)
		if err != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "failed to encode sets", errors.SlogError(err))
			return
		}
		if _, err = fmt.Fprintf(w, "event: sets\ndata: %s\n\n", data); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "stream client gone", errors.SlogError(err))
			return
		}
		if err = rc.Flush(); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "failed to flush stream", errors.SlogError(err))
			return
		}
	}
}
