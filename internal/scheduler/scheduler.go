package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/takashi5144/keiba-3/internal/models"
	"github.com/takashi5144/keiba-3/internal/stream"
)

// Refresher recomputes and caches today's recommendations
type Refresher interface {
	Refresh(ctx context.Context) (*models.RecommendationBatch, error)
}

// Broadcaster pushes messages to live subscribers
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) bool
}

// Scheduler manages the scheduled recommendation jobs
type Scheduler struct {
	cron        *cron.Cron
	refresher   Refresher
	broadcaster Broadcaster
	logger      *logrus.Logger
	mu          sync.RWMutex
	isRunning   bool
	jobIDs      []cron.EntryID
	jobTimeout  time.Duration
}

// NewScheduler creates a new scheduler running in loc. broadcaster may be nil.
func NewScheduler(refresher Refresher, broadcaster Broadcaster, loc *time.Location, logger *logrus.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		refresher:   refresher,
		broadcaster: broadcaster,
		logger:      logger,
		jobIDs:      make([]cron.EntryID, 0),
		jobTimeout:  10 * time.Minute,
	}
}

// ScheduleRecommendations schedules the daily recommendation refresh
func (s *Scheduler) ScheduleRecommendations(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		_ = s.RunRecommendations(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled recommendation job")
	return nil
}

// RunRecommendations refreshes recommendations once and broadcasts the batch
func (s *Scheduler) RunRecommendations(ctx context.Context) error {
	start := time.Now()
	batch, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled recommendation refresh failed")
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(stream.MessageTypeRecommendations, batch)
	}

	s.logger.WithFields(logrus.Fields{
		"date":              batch.Date,
		"total_races":       batch.Summary.TotalRaces,
		"recommended_races": batch.Summary.RecommendedRaces,
		"duration":          time.Since(start),
	}).Info("Scheduled recommendation refresh completed")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}
