package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.recoverPanic(app.logAndTraceRequest(secureHeaders(noCache(app.crossOriginProtection(next)))))
		}
		api = func(next http.Handler) http.Handler {
			return shared(app.timeout(next))
		}
		// stream is for responses that outlive the request timeout.
		stream = shared
	)

	mux.Handle("POST /api/exercises", api(http.HandlerFunc(app.exercisePOST)))
	mux.Handle("GET /api/exercises", api(http.HandlerFunc(app.exercisesGET)))
	mux.Handle("GET /api/exercises/{exerciseID}/suggestion", api(http.HandlerFunc(app.exerciseSuggestionGET)))
	mux.Handle("POST /api/programs", api(http.HandlerFunc(app.programPOST)))
	mux.Handle("POST /api/programs/{programID}/sessions", api(http.HandlerFunc(app.sessionPOST)))
	mux.Handle("POST /api/sessions/{sessionID}/exercises", api(http.HandlerFunc(app.sessionExercisePOST)))

	mux.Handle("POST /api/sessions/{sessionID}/runs", api(http.HandlerFunc(app.runStartPOST)))
	mux.Handle("GET /api/runs/{runID}", api(http.HandlerFunc(app.runGET)))
	mux.Handle("DELETE /api/runs/{runID}", api(http.HandlerFunc(app.runDELETE)))
	mux.Handle("PUT /api/runs/{runID}/note", api(http.HandlerFunc(app.runNotePUT)))
	mux.Handle("PUT /api/runs/{runID}/inputs/{slot}", api(http.HandlerFunc(app.runInputPUT)))
	mux.Handle("POST /api/runs/{runID}/exercises/{sessionExerciseID}/sets/{setOrder}/validate",
		api(http.HandlerFunc(app.setValidatePOST)))
	mux.Handle("DELETE /api/runs/{runID}/exercises/{sessionExerciseID}/sets/{setOrder}/validate",
		api(http.HandlerFunc(app.setValidateDELETE)))
	mux.Handle("POST /api/runs/{runID}/complete", api(http.HandlerFunc(app.runCompletePOST)))
	mux.Handle("GET /api/runs/{runID}/summary", api(http.HandlerFunc(app.runSummaryGET)))
	mux.Handle("GET /api/runs/{runID}/sets/stream", stream(http.HandlerFunc(app.runSetsStreamGET)))

	mux.Handle("GET /api/healthy", api(http.HandlerFunc(app.healthy)))
	//nolint:exhaustruct // default handler options.
	mux.Handle("GET /metrics", api(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	mux.Handle("/", api(http.HandlerFunc(app.notFound)))

	return mux
}
