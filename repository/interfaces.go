package repository

import (
	"context"

	"github.com/oohgrid/billboard-etl/models"
)

// contextKey for the transaction carried in the context.
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// BillboardRepository defines operations for canonical billboard records.
type BillboardRepository interface {
	Repository[models.Billboard, models.BillboardFilter]
	ByBillboardID(ctx context.Context, billboardID string) (*models.Billboard, error)
	Upsert(ctx context.Context, billboard *models.Billboard) error
	UpsertBatch(ctx context.Context, billboards []*models.Billboard) error
	UpdateProfileStatus(ctx context.Context, billboardID, status string, profileErr *string) error
	ListByRun(ctx context.Context, runID string) ([]*models.Billboard, error)
}

// PipelineRunRepository defines operations for run audit records.
type PipelineRunRepository interface {
	Repository[models.PipelineRun, models.PipelineRunFilter]
	ByRunID(ctx context.Context, runID string) (*models.PipelineRun, error)
	Update(ctx context.Context, run *models.PipelineRun) error
	ListRecent(ctx context.Context, limit int) ([]*models.PipelineRun, error)
}
