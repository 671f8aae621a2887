package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
)

type liveEntry struct {
	live     *workout.LiveSession
	lastUsed time.Time
}

// liveSessions holds the engines of the runs being performed, keyed by run ID. Sessions without requests for
// idleTimeout are closed by sweep.
type liveSessions struct {
	mu          sync.Mutex
	byRun       map[string]*liveEntry
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Manager
}

func newLiveSessions(idleTimeout time.Duration, logger *slog.Logger, m *metrics.Manager) *liveSessions {
	return &liveSessions{
		mu:          sync.Mutex{},
		byRun:       make(map[string]*liveEntry),
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger,
		metrics:     m,
	}
}

func (s *liveSessions) add(runID string, live *workout.LiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byRun[runID]; ok {
		prev.live.Engine.Close()
	}
	s.byRun[runID] = &liveEntry{live: live, lastUsed: s.now()}
	s.metrics.GaugeActiveSessions.Set(float64(len(s.byRun)))
}

// get returns the live session of runID and marks it as used.
func (s *liveSessions) get(runID string) (*workout.LiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byRun[runID]
	if !ok {
		return nil, false
	}
	entry.lastUsed = s.now()
	return entry.live, true
}

// remove closes the engine of runID.
func (s *liveSessions) remove(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.byRun[runID]; ok {
		entry.live.Engine.Close()
		delete(s.byRun, runID)
	}
	s.metrics.GaugeActiveSessions.Set(float64(len(s.byRun)))
}

// evictIdle closes the sessions unused since before the idle timeout and returns how many were closed.
func (s *liveSessions) evictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idleTimeout)
	evicted := 0
	for runID, entry := range s.byRun {
		if entry.lastUsed.Before(cutoff) {
			entry.live.Engine.Close()
			delete(s.byRun, runID)
			evicted++
		}
	}
	s.metrics.GaugeActiveSessions.Set(float64(len(s.byRun)))
	return evicted
}

// sweep evicts idle sessions every interval until ctx is done.
func (s *liveSessions) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evictIdle(); n > 0 {
				s.logger.LogAttrs(ctx, slog.LevelInfo, "closed idle live sessions", slog.Int("count", n))
			}
		}
	}
}

func (s *liveSessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, entry := range s.byRun {
		entry.live.Engine.Close()
		delete(s.byRun, runID)
	}
	s.metrics.GaugeActiveSessions.Set(0)
}

// sweepInterval checks often enough that sessions live at most a tenth longer than the idle timeout.
func sweepInterval(idleTimeout time.Duration) time.Duration {
	return max(idleTimeout/10, time.Second) //nolint:mnd // a tenth.
}
