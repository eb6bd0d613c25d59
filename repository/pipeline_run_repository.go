package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/oohgrid/billboard-etl/models"
)

// PipelineRunRepositoryImpl implements PipelineRunRepository.
type PipelineRunRepositoryImpl struct {
	*BaseRepository[models.PipelineRun, models.PipelineRunFilter]
}

// NewPipelineRunRepository creates a new pipeline run repository.
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &PipelineRunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PipelineRun, models.PipelineRunFilter](db),
	}
}

// ByRunID retrieves a run by its public identifier.
func (r *PipelineRunRepositoryImpl) ByRunID(ctx context.Context, runID string) (*models.PipelineRun, error) {
	db := r.getDB(ctx)
	var row models.PipelineRun
	if err := db.Where("run_id = ?", runID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update persists counter and status changes for an existing run.
func (r *PipelineRunRepositoryImpl) Update(ctx context.Context, run *models.PipelineRun) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(run).Error
	if err != nil {
		return fmt.Errorf("failed to update pipeline run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRecent retrieves the latest runs, newest first.
func (r *PipelineRunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	db := r.getDB(ctx)
	if limit <= 0 {
		limit = 20
	}
	var rows []*models.PipelineRun
	if err := db.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByFilter retrieves runs matching the filter.
func (r *PipelineRunRepositoryImpl) ByFilter(ctx context.Context, filter models.PipelineRunFilter, orderBy string, limit, offset int) ([]*models.PipelineRun, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.PipelineRun{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PipelineRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find pipeline runs by filter: %w", err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query.
func (r *PipelineRunRepositoryImpl) applyFilter(query *gorm.DB, filter models.PipelineRunFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.RunID != nil {
		query = query.Where("run_id = ?", *filter.RunID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartedAfter != nil {
		query = query.Where("started_at > ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		query = query.Where("started_at < ?", *filter.StartedBefore)
	}
	return query
}
