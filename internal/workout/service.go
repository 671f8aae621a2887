package workout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

// Service handles the business logic of workout plans and live sessions.
type Service struct {
	repo    *repository
	logger  *slog.Logger
	metrics *metrics.Manager
	advisor Advisor
}

// NewService creates a new workout service. incrementKg is the weight increment used by progression suggestions.
func NewService(db *sqlite.Database, logger *slog.Logger, m *metrics.Manager, incrementKg float64) *Service {
	return &Service{
		repo:    newRepository(db, logger, m),
		logger:  logger,
		metrics: m,
		advisor: NewAdvisor(incrementKg),
	}
}

// History returns the storage adapter used by live sessions.
func (s *Service) History() HistoryRepository {
	return s.repo.history
}

// CreateExercise adds an exercise to the catalog.
func (s *Service) CreateExercise(ctx context.Context, ex Exercise) (Exercise, error) {
	created, err := s.repo.exercises.Create(ctx, ex)
	if err != nil {
		return Exercise{}, fmt.Errorf("create exercise: %w", err)
	}
	return created, nil
}

// GetExercise retrieves an exercise by ID.
func (s *Service) GetExercise(ctx context.Context, id string) (Exercise, error) {
	ex, err := s.repo.exercises.Get(ctx, id)
	if err != nil {
		return Exercise{}, fmt.Errorf("get exercise %s: %w", id, err)
	}
	return ex, nil
}

// ListExercises returns the exercise catalog ordered by name.
func (s *Service) ListExercises(ctx context.Context) ([]Exercise, error) {
	exercises, err := s.repo.exercises.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return exercises, nil
}

// CreateProgram adds a program.
func (s *Service) CreateProgram(ctx context.Context, name string) (Program, error) {
	p, err := s.repo.plans.CreateProgram(ctx, name)
	if err != nil {
		return Program{}, fmt.Errorf("create program: %w", err)
	}
	return p, nil
}

// CreateSession adds a session to a program.
func (s *Service) CreateSession(ctx context.Context, programID, name string) (Session, error) {
	session, err := s.repo.plans.CreateSession(ctx, programID, name)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	session, err := s.repo.plans.GetSession(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return session, nil
}

// AddSessionExercise plans an exercise at the end of a session.
func (s *Service) AddSessionExercise(ctx context.Context, se SessionExercise) (SessionExercise, error) {
	added, err := s.repo.plans.AddSessionExercise(ctx, se)
	if err != nil {
		return SessionExercise{}, fmt.Errorf("add session exercise: %w", err)
	}
	return added, nil
}

// ListSessionExercises returns the planned exercises of a session.
func (s *Service) ListSessionExercises(ctx context.Context, sessionID string) ([]SessionExercise, error) {
	ses, err := s.repo.plans.ListSessionExercises(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session exercises: %w", err)
	}
	return ses, nil
}

// LiveSession is a session being performed together with the engine that tracks it.
type LiveSession struct {
	Session   Session
	Exercises []SessionExercise
	Engine    *SessionEngine
}

// SessionExercise returns the planned exercise with the given ID.
func (l *LiveSession) SessionExercise(id string) (SessionExercise, bool) {
	for _, se := range l.Exercises {
		if se.ID == id {
			return se, true
		}
	}
	return SessionExercise{}, false
}

// StartSession opens a live session. The run is created in the background and attached to the engine once
// stored; use SessionEngine.WaitRun to obtain its ID. Drafts are seeded before the run is created.
func (s *Service) StartSession(ctx context.Context, sessionID string, startTime time.Time) (*LiveSession, error) {
	session, err := s.repo.plans.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	ses, err := s.repo.plans.ListSessionExercises(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session exercises: %w", err)
	}

	engine := NewSessionEngine(s.repo.history, s.repo.exercises, s.logger, s.metrics)
	engine.SeedDrafts(ctx, ses)

	// The run outlives the request that started it.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		run, runErr := s.repo.history.CreateRun(runCtx, sessionID, startTime)
		if runErr != nil {
			runErr = errors.Wrap(runErr, "create run", slog.String("session_id", sessionID))
			s.logger.LogAttrs(runCtx, slog.LevelError, "failed to start run", errors.SlogError(runErr))
			engine.failRun(runErr)
			return
		}
		engine.AttachRun(run.ID)
	}()

	return &LiveSession{
		Session:   session,
		Exercises: ses,
		Engine:    engine,
	}, nil
}

// CompleteRun ends a run.
func (s *Service) CompleteRun(ctx context.Context, runID string, endTime time.Time) error {
	if err := s.repo.history.CompleteRun(ctx, runID, endTime); err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return nil
}

// GetRun retrieves a run.
func (s *Service) GetRun(ctx context.Context, runID string) (Run, error) {
	run, err := s.repo.history.GetRun(ctx, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// UpdateRunNote replaces the note of a run.
func (s *Service) UpdateRunNote(ctx context.Context, runID string, note *string) error {
	if err := s.repo.history.UpdateRunNote(ctx, runID, note); err != nil {
		return fmt.Errorf("update note of run %s: %w", runID, err)
	}
	return nil
}

// DeleteRun hides a run from history. Its sets no longer count towards personal records or suggestions.
func (s *Service) DeleteRun(ctx context.Context, runID string) error {
	if err := s.repo.history.SoftDeleteRun(ctx, runID, time.Now()); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

// ListLoggedSets returns the persisted sets of a run.
func (s *Service) ListLoggedSets(ctx context.Context, runID string) ([]LoggedSet, error) {
	sets, err := s.repo.history.ListLoggedSets(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list sets of run %s: %w", runID, err)
	}
	return sets, nil
}

// ObserveRunSets streams the sets of a run until ctx is done.
func (s *Service) ObserveRunSets(ctx context.Context, runID string) <-chan []LoggedSet {
	return s.repo.history.ObserveRunSets(ctx, runID)
}

// RunSummary aggregates the persisted sets of a run.
func (s *Service) RunSummary(ctx context.Context, runID string) (RunSummary, error) {
	run, err := s.repo.history.GetRun(ctx, runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	sets, err := s.repo.history.ListLoggedSets(ctx, runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list sets of run %s: %w", runID, err)
	}

	summary := RunSummary{Run: run, TotalVolume: 0, SetsCount: len(sets), PRCount: 0}
	var volumeMilli int64
	for _, set := range sets {
		volumeMilli += volumeOf(set.Weight, set.Reps)
		if set.IsPR {
			summary.PRCount++
		}
	}
	summary.TotalVolume = float64(volumeMilli) / volumeScale
	return summary, nil
}

// Suggestion is the display-time progression target of an exercise.
type Suggestion struct {
	LastPerformance *LastPerformance `json:"last_performance"`
	Progression     *Progression     `json:"progression"`
}

// Suggest computes the next target of an exercise from its most recent performance outside excludeRunID.
// Progression is nil when there is no history or repsTarget cannot be parsed.
func (s *Service) Suggest(ctx context.Context, exerciseID, repsTarget, excludeRunID string) (Suggestion, error) {
	perf, err := s.repo.history.LastPerformanceForExercise(ctx, exerciseID, excludeRunID)
	if err != nil {
		return Suggestion{}, fmt.Errorf("last performance for exercise %s: %w", exerciseID, err)
	}
	suggestion := Suggestion{LastPerformance: perf, Progression: nil}
	if perf != nil {
		suggestion.Progression = s.advisor.Suggest(perf.MaxWeight, float64(perf.AvgReps), repsTarget)
	}
	return suggestion, nil
}

// SuggestAll computes suggestions for every planned exercise, keyed by session exercise ID.
func (s *Service) SuggestAll(
	ctx context.Context,
	ses []SessionExercise,
	excludeRunID string,
) (map[string]Suggestion, error) {
	var (
		mu          sync.Mutex
		suggestions = make(map[string]Suggestion, len(ses))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, se := range ses {
		g.Go(func() error {
			var repsTarget string
			if se.RepsTarget != nil {
				repsTarget = *se.RepsTarget
			}
			suggestion, err := s.Suggest(gctx, se.ExerciseID, repsTarget, excludeRunID)
			if err != nil {
				return err
			}
			mu.Lock()
			suggestions[se.ID] = suggestion
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return suggestions, nil
}
