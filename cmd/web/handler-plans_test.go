package main

import (
	"net/http"
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/e2etest"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/ptr"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
	"github.com/google/go-cmp/cmp"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "WEGOGYM_SQLITE_URL":
		return ":memory:", true
	case "WEGOGYM_ADDR":
		return "localhost:0", true
	case "WEGOGYM_LOG_LEVEL":
		return "debug", true
	default:
		return "", false
	}
}

func startTestServer(t *testing.T) *e2etest.Client {
	t.Helper()
	return e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run).Client()
}

// doJSON sends a request and fails the test unless the response has status want.
func doJSON(t *testing.T, client *e2etest.Client, method, path string, body, out any, want int) {
	t.Helper()
	status, err := client.DoJSON(t.Context(), method, path, body, out)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if status != want {
		t.Fatalf("%s %s: status %d, want %d", method, path, status, want)
	}
}

type testPlan struct {
	exercise        workout.Exercise
	session         workout.Session
	sessionExercise workout.SessionExercise
}

// createTestPlan creates a session with a single bench press exercise of two sets of 8-12 reps at 50 kg.
func createTestPlan(t *testing.T, client *e2etest.Client) testPlan {
	t.Helper()
	var (
		plan    testPlan
		program workout.Program
	)
	doJSON(t, client, http.MethodPost, "/api/exercises",
		exerciseRequest{Name: "Bench press", Muscles: []string{"Chest", "Triceps"}, Equipment: "Barbell"},
		&plan.exercise, http.StatusCreated)
	doJSON(t, client, http.MethodPost, "/api/programs", nameRequest{Name: "Upper/lower"}, &program,
		http.StatusCreated)
	doJSON(t, client, http.MethodPost, "/api/programs/"+program.ID+"/sessions", nameRequest{Name: "Upper A"},
		&plan.session, http.StatusCreated)
	doJSON(t, client, http.MethodPost, "/api/sessions/"+plan.session.ID+"/exercises", sessionExerciseRequest{
		ExerciseID:   plan.exercise.ID,
		SetsTarget:   2,
		RepsTarget:   ptr.Ref("8-12"),
		WeightTarget: ptr.Ref(50.0),
	}, &plan.sessionExercise, http.StatusCreated)
	return plan
}

func Test_application_plans(t *testing.T) {
	client := startTestServer(t)
	plan := createTestPlan(t, client)

	t.Run("list exercises", func(t *testing.T) {
		var exercises []workout.Exercise
		doJSON(t, client, http.MethodGet, "/api/exercises", nil, &exercises, http.StatusOK)
		if diff := cmp.Diff([]workout.Exercise{plan.exercise}, exercises); diff != "" {
			t.Errorf("exercises mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("suggestion without history", func(t *testing.T) {
		var suggestion workout.Suggestion
		doJSON(t, client, http.MethodGet, "/api/exercises/"+plan.exercise.ID+"/suggestion?reps_target=8-12", nil,
			&suggestion, http.StatusOK)
		if suggestion.LastPerformance != nil || suggestion.Progression != nil {
			t.Errorf("Expected an empty suggestion, got %+v", suggestion)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			body   any
			want   int
		}{
			{
				name:   "exercise without name",
				method: http.MethodPost,
				path:   "/api/exercises",
				body:   exerciseRequest{Name: " ", Muscles: nil, Equipment: ""},
				want:   http.StatusBadRequest,
			},
			{
				name:   "unknown field",
				method: http.MethodPost,
				path:   "/api/programs",
				body:   map[string]string{"title": "Program"},
				want:   http.StatusBadRequest,
			},
			{
				name:   "negative sets target",
				method: http.MethodPost,
				path:   "/api/sessions/" + plan.session.ID + "/exercises",
				body: sessionExerciseRequest{
					ExerciseID: plan.exercise.ID, SetsTarget: -1, RepsTarget: nil, WeightTarget: nil,
				},
				want: http.StatusBadRequest,
			},
			{
				name:   "unknown exercise in session",
				method: http.MethodPost,
				path:   "/api/sessions/" + plan.session.ID + "/exercises",
				body: sessionExerciseRequest{
					ExerciseID: "missing", SetsTarget: 3, RepsTarget: nil, WeightTarget: nil,
				},
				want: http.StatusBadRequest,
			},
			{
				name:   "unknown session",
				method: http.MethodPost,
				path:   "/api/sessions/missing/exercises",
				body: sessionExerciseRequest{
					ExerciseID: plan.exercise.ID, SetsTarget: 3, RepsTarget: nil, WeightTarget: nil,
				},
				want: http.StatusNotFound,
			},
			{
				name:   "unknown exercise suggestion",
				method: http.MethodGet,
				path:   "/api/exercises/missing/suggestion",
				body:   nil,
				want:   http.StatusNotFound,
			},
			{
				name:   "unknown route",
				method: http.MethodGet,
				path:   "/api/nothing-here",
				body:   nil,
				want:   http.StatusNotFound,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				doJSON(t, client, tt.method, tt.path, tt.body, nil, tt.want)
			})
		}
	})
}
