package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/e2etest"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	setupTimeout            = 30 * time.Second
	scenarioTimeout         = 30 * time.Second
	maxConcurrentRuns       = 10
	maxConcurrentOperations = 20
	numRuns                 = 25
	setsPerExercise         = 4
	duplicateValidations    = 5
	baseWeight              = 40.0
	maxWeightVariation      = 10
	baseReps                = 6
	maxRepsVariation        = 6
	successRateThreshold    = 95.0
	expectedArgsCount       = 2
	percentageMultiplier    = 100
)

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	RunID string `json:"run_id"`
}

type summaryResponse struct {
	SetsCount int `json:"sets_count"`
}

// plan is a session with several exercises created for the load test.
type plan struct {
	sessionID          string
	sessionExerciseIDs []string
}

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

// SetupPlan creates a program with one session of three exercises.
func SetupPlan(ctx context.Context, client *e2etest.Client) (plan, error) {
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	var program, session idResponse
	if err := expect(ctx, client, http.MethodPost, "/api/programs", map[string]string{"name": "Stress test"},
		&program, http.StatusCreated); err != nil {
		return plan{}, err
	}
	if err := expect(ctx, client, http.MethodPost, "/api/programs/"+program.ID+"/sessions",
		map[string]string{"name": "Full body"}, &session, http.StatusCreated); err != nil {
		return plan{}, err
	}

	p := plan{sessionID: session.ID, sessionExerciseIDs: nil}
	for _, name := range []string{"Squat", "Bench press", "Barbell row"} {
		var exercise, sessionExercise idResponse
		if err := expect(ctx, client, http.MethodPost, "/api/exercises",
			map[string]any{"name": "Stress test " + name, "muscles": []string{}, "equipment": "Barbell"},
			&exercise, http.StatusCreated); err != nil {
			return plan{}, err
		}
		if err := expect(ctx, client, http.MethodPost, "/api/sessions/"+session.ID+"/exercises",
			map[string]any{"exercise_id": exercise.ID, "sets_target": setsPerExercise, "reps_target": "6-12"},
			&sessionExercise, http.StatusCreated); err != nil {
			return plan{}, err
		}
		p.sessionExerciseIDs = append(p.sessionExerciseIDs, sessionExercise.ID)
	}
	return p, nil
}

// RunScenario performs one live session: it fills in and validates every set concurrently, validates one slot
// several times at once and checks that the completed run persisted each set exactly once.
func RunScenario(ctx context.Context, client *e2etest.Client, p plan) error {
	var run runResponse
	if err := expect(ctx, client, http.MethodPost, "/api/sessions/"+p.sessionID+"/runs", nil, &run,
		http.StatusCreated); err != nil {
		return err
	}
	runPath := "/api/runs/" + run.RunID

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for _, seID := range p.sessionExerciseIDs {
		for setOrder := 1; setOrder <= setsPerExercise; setOrder++ {
			g.Go(func() error {
				slot := seID + "_" + strconv.Itoa(setOrder)
				weight := baseWeight + float64(rand.IntN(maxWeightVariation)) //nolint:gosec // load shape only.
				reps := baseReps + rand.IntN(maxRepsVariation)               //nolint:gosec // load shape only.
				if err := expect(gctx, client, http.MethodPut, runPath+"/inputs/"+slot,
					map[string]string{"field": "weight", "value": strconv.FormatFloat(weight, 'f', -1, 64)},
					nil, http.StatusNoContent); err != nil {
					return err
				}
				if err := expect(gctx, client, http.MethodPut, runPath+"/inputs/"+slot,
					map[string]string{"field": "reps", "value": strconv.Itoa(reps)}, nil,
					http.StatusNoContent); err != nil {
					return err
				}
				if setOrder == 1 {
					return validateConcurrently(gctx, client, runPath, seID)
				}
				return expect(gctx, client, http.MethodPost,
					runPath+"/exercises/"+seID+"/sets/"+strconv.Itoa(setOrder)+"/validate", nil, nil, http.StatusOK)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var summary summaryResponse
	if err := expect(ctx, client, http.MethodPost, runPath+"/complete", nil, &summary, http.StatusOK); err != nil {
		return err
	}
	if want := len(p.sessionExerciseIDs) * setsPerExercise; summary.SetsCount != want {
		return fmt.Errorf("run %s persisted %d sets, want %d", run.RunID, summary.SetsCount, want)
	}
	return nil
}

// validateConcurrently validates the first set of an exercise several times at once. Requests that overlap share
// one validation, later ones are rejected; the completed run must still hold the set only once.
func validateConcurrently(ctx context.Context, client *e2etest.Client, runPath, seID string) error {
	var (
		accepted atomic.Int64
		g        errgroup.Group
	)
	for range duplicateValidations {
		g.Go(func() error {
			status, err := client.DoJSON(ctx, http.MethodPost, runPath+"/exercises/"+seID+"/sets/1/validate", nil, nil)
			if err != nil {
				return fmt.Errorf("validate set: %w", err)
			}
			if status == http.StatusOK {
				accepted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck // already wrapped.
	}
	if accepted.Load() == 0 {
		return fmt.Errorf("none of %d concurrent validations of the same set was accepted", duplicateValidations)
	}
	return nil
}

// RunLoadTest performs numRuns live sessions concurrently.
func RunLoadTest(ctx context.Context, client *e2etest.Client, p plan, logger *slog.Logger) error {
	var (
		successCount atomic.Int64
		failureCount atomic.Int64
		g            errgroup.Group
	)
	g.SetLimit(maxConcurrentRuns)

	for i := range numRuns {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := RunScenario(scenarioCtx, client, p); err != nil {
				failureCount.Add(1)
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.Int("scenario", i), slog.Any("error", err))
				return nil // Don't propagate error to avoid stopping other scenarios
			}
			successCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	successRate := float64(successCount.Load()) / float64(numRuns) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
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

	p, err := SetupPlan(ctx, client)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to set up plan", slog.Any("error", err))
		os.Exit(1)
	}

	loadTestStart := time.Now()
	if err = RunLoadTest(ctx, client, p, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("runs", numRuns))
}
