package collection

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pokedan/cardwatch/backend/internal/models"
)

// Service owns the latest snapshot and serializes pipeline runs. Each refresh
// produces a wholly new snapshot; readers always see either the previous
// complete snapshot or the new one, never something in between.
type Service struct {
	pipeline *Pipeline
	history  *History
	interval time.Duration
	logger   zerolog.Logger

	runMu  sync.Mutex // one pipeline run at a time
	mu     sync.RWMutex
	latest *models.CollectionSnapshot
}

// NewService wires the snapshot service.
func NewService(pipeline *Pipeline, history *History, interval time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		pipeline: pipeline,
		history:  history,
		interval: interval,
		logger:   logger.With().Str("component", "snapshot_service").Logger(),
	}
}

// Latest returns the most recent snapshot, or nil before the first run.
func (s *Service) Latest() *models.CollectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Refresh runs the pipeline once and publishes the result. A fatal pipeline
// error leaves the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) (*models.CollectionSnapshot, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	snapshot, err := s.pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = snapshot
	s.mu.Unlock()

	if err := s.history.Record(snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record snapshot history")
	}

	return snapshot, nil
}

// History exposes persisted snapshot totals for a period.
func (s *Service) History(period string) ([]models.SnapshotRecord, error) {
	return s.history.GetHistory(period)
}

// Start runs an initial refresh and then refreshes on a fixed interval until
// the context is cancelled. The pipeline itself is stateless between runs;
// this worker is the external scheduler driving it.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("snapshot refresh worker started")

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial snapshot refresh failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("snapshot refresh worker stopping")
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled snapshot refresh failed")
			}
		}
	}
}
