package models

import "time"

// BillboardFilter carries optional criteria for billboard queries. Nil
// fields are ignored.
type BillboardFilter struct {
	ID            *uint
	BillboardID   *string
	RunID         *string
	FormatType    *string
	City          *string
	ProfileStatus *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PipelineRunFilter carries optional criteria for pipeline run queries.
type PipelineRunFilter struct {
	ID            *uint
	RunID         *string
	Status        *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
}
