package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oohgrid/billboard-etl/models"
)

// BillboardRepositoryImpl implements BillboardRepository.
type BillboardRepositoryImpl struct {
	*BaseRepository[models.Billboard, models.BillboardFilter]
}

// NewBillboardRepository creates a new billboard repository.
func NewBillboardRepository(db *gorm.DB) BillboardRepository {
	return &BillboardRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Billboard, models.BillboardFilter](db),
	}
}

// ByBillboardID retrieves a billboard by its vendor-assigned identity.
func (r *BillboardRepositoryImpl) ByBillboardID(ctx context.Context, billboardID string) (*models.Billboard, error) {
	db := r.getDB(ctx)
	var row models.Billboard
	if err := db.Where("billboard_id = ?", billboardID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// upsertColumns are the fields refreshed when a vendor re-export collides
// with an existing billboard_id.
var upsertColumns = []string{
	"run_id", "format_type", "lighting_type", "category_id",
	"latitude", "longitude", "city", "district", "area", "location",
	"width_ft", "height_ft", "quantity", "frequency_per_minute",
	"base_rate_per_month", "base_rate_per_unit",
	"card_rate_per_month", "card_rate_per_unit",
	"image_urls", "profile_status", "profile_error", "updated_at",
}

// Upsert inserts a billboard or refreshes the existing row keyed by
// billboard_id.
func (r *BillboardRepositoryImpl) Upsert(ctx context.Context, billboard *models.Billboard) error {
	return r.UpsertBatch(ctx, []*models.Billboard{billboard})
}

// UpsertBatch inserts or refreshes billboards in one statement.
func (r *BillboardRepositoryImpl) UpsertBatch(ctx context.Context, billboards []*models.Billboard) error {
	if len(billboards) == 0 {
		return nil
	}

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

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "billboard_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).CreateInBatches(billboards, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert billboards: %w", err)
	}
	return nil
}

// UpdateProfileStatus records the classification outcome for one billboard.
func (r *BillboardRepositoryImpl) UpdateProfileStatus(ctx context.Context, billboardID, status string, profileErr *string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Billboard{}).
		Where("billboard_id = ?", billboardID).
		Updates(map[string]any{
			"profile_status": status,
			"profile_error":  profileErr,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update profile status for %s: %w", billboardID, err)
	}
	return nil
}

// ListByRun retrieves all billboards touched by a run.
func (r *BillboardRepositoryImpl) ListByRun(ctx context.Context, runID string) ([]*models.Billboard, error) {
	db := r.getDB(ctx)
	var rows []*models.Billboard
	if err := db.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ByFilter retrieves billboards matching the filter.
func (r *BillboardRepositoryImpl) ByFilter(ctx context.Context, filter models.BillboardFilter, orderBy string, limit, offset int) ([]*models.Billboard, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Billboard{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Billboard
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find billboards by filter: %w", err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query.
func (r *BillboardRepositoryImpl) applyFilter(query *gorm.DB, filter models.BillboardFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.BillboardID != nil {
		query = query.Where("billboard_id = ?", *filter.BillboardID)
	}
	if filter.RunID != nil {
		query = query.Where("run_id = ?", *filter.RunID)
	}
	if filter.FormatType != nil {
		query = query.Where("format_type = ?", *filter.FormatType)
	}
	if filter.City != nil {
		query = query.Where("city = ?", *filter.City)
	}
	if filter.ProfileStatus != nil {
		query = query.Where("profile_status = ?", *filter.ProfileStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
