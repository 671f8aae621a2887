package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/e2etest"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
)

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	RunID string `json:"run_id"`
}

type summaryResponse struct {
	TotalVolume float64 `json:"total_volume"`
	SetsCount   int     `json:"sets_count"`
}

// expect performs a request and checks the response status.
func expect(ctx context.Context, client *e2etest.Client, method, path string, body, out any, want int) error {
	status, err := client.DoJSON(ctx, method, path, body, out)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if status != want {
		return fmt.Errorf("%s %s: got status %d, want %d", method, path, status, want)
	}
	return nil
}

// TestLiveSession plans a session, performs one set in a live session and deletes the run afterwards so that
// the smoke test leaves no history behind.
func TestLiveSession(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	var exercise, program, session, sessionExercise idResponse
	if err := expect(ctx, client, http.MethodPost, "/api/exercises",
		map[string]any{"name": "Smoke test squat", "muscles": []string{"Quads"}, "equipment": "Barbell"},
		&exercise, http.StatusCreated); err != nil {
		return err
	}
	if err := expect(ctx, client, http.MethodPost, "/api/programs", map[string]string{"name": "Smoke test"},
		&program, http.StatusCreated); err != nil {
		return err
	}
	if err := expect(ctx, client, http.MethodPost, "/api/programs/"+program.ID+"/sessions",
		map[string]string{"name": "Smoke test session"}, &session, http.StatusCreated); err != nil {
		return err
	}
	if err := expect(ctx, client, http.MethodPost, "/api/sessions/"+session.ID+"/exercises",
		map[string]any{"exercise_id": exercise.ID, "sets_target": 1, "reps_target": "5", "weight_target": 20},
		&sessionExercise, http.StatusCreated); err != nil {
		return err
	}

	var run runResponse
	if err := expect(ctx, client, http.MethodPost, "/api/sessions/"+session.ID+"/runs", nil, &run,
		http.StatusCreated); err != nil {
		return err
	}
	runPath := "/api/runs/" + run.RunID
	if err := expect(ctx, client, http.MethodPost,
		runPath+"/exercises/"+sessionExercise.ID+"/sets/1/validate", nil, nil, http.StatusOK); err != nil {
		return err
	}

	var summary summaryResponse
	if err := expect(ctx, client, http.MethodPost, runPath+"/complete", nil, &summary, http.StatusOK); err != nil {
		return err
	}
	if summary.SetsCount != 1 || summary.TotalVolume != 100 {
		return fmt.Errorf("unexpected summary %+v", summary)
	}
	return expect(ctx, client, http.MethodDelete, runPath, nil, nil, http.StatusNoContent)
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	client := e2etest.NewClient(url)
	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err := TestLiveSession(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing live session", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}
