package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/models"
)

// RunStore records import runs
type RunStore struct {
	db *gorm.DB
}

// NewRunStore creates a run store on db
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// Start creates an in-progress run
func (s *RunStore) Start(runID, source string, dryRun bool) (*models.ImportRun, error) {
	now := time.Now()
	run := &models.ImportRun{
		RunID:     runID,
		Source:    source,
		Status:    models.RunInProgress,
		DryRun:    dryRun,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

// Finish stores the outcome of run. A non-nil runErr marks it failed.
func (s *RunStore) Finish(run *models.ImportRun, channels, programmes int, summary map[string]int, runErr error) error {
	now := time.Now()
	run.Status = models.RunSucceeded
	run.Channels = channels
	run.Programmes = programmes
	run.Summary = summary
	run.CompletedAt = &now
	run.UpdatedAt = now
	if runErr != nil {
		msg := runErr.Error()
		run.Status = models.RunFailed
		run.ErrorMessage = &msg
	}
	if err := s.db.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (s *RunStore) Recent(limit int) ([]models.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ImportRun
	if err := s.db.Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}
