package dto

import "github.com/oohgrid/billboard-etl/pipeline"

// SubmitRunRequest starts a pipeline run over an uploaded vendor file.
type SubmitRunRequest struct {
	SourceFile       string            `json:"source_file" validate:"required"`
	OriginalFilename string            `json:"original_filename"`
	RenameMapping    map[string]string `json:"rename_mapping"`
	StaticMapping    map[string]string `json:"static_mapping"`
	KeepColumns      []string          `json:"keep_columns"`
	CoordinateOrder  string            `json:"coordinate_order" validate:"omitempty,oneof=lonlat latlon"`
	PushProfiles     bool              `json:"push_profiles"`
	BuildListings    bool              `json:"build_listings"`
}

// SubmitRunResponse reports the outcome of a completed run.
type SubmitRunResponse struct {
	RunID             string             `json:"run_id"`
	Status            string             `json:"status"`
	OutputFile        string             `json:"output_file,omitempty"`
	ListingsFile      string             `json:"listings_file,omitempty"`
	MissingCategories []string           `json:"missing_categories,omitempty"`
	Report            pipeline.RunReport `json:"report"`
	Push              *PushSummary       `json:"push,omitempty"`
}

// PushSummary condenses the profile push accounting for API responses.
type PushSummary struct {
	TotalRecords int     `json:"total_records"`
	TotalSuccess int     `json:"total_success"`
	TotalErrors  int     `json:"total_errors"`
	SuccessRate  float64 `json:"success_rate"`
}

// RunStatusResponse describes the current state of a run.
type RunStatusResponse struct {
	RunID              string  `json:"run_id"`
	Status             string  `json:"status"`
	InputRows          int     `json:"input_rows"`
	FinalRows          int     `json:"final_rows"`
	DroppedImages      int     `json:"dropped_images"`
	DroppedCoords      int     `json:"dropped_coords"`
	PushSuccess        int     `json:"push_success"`
	PushErrors         int     `json:"push_errors"`
	LastCompletedBatch int     `json:"last_completed_batch,omitempty"`
	TotalBatches       int     `json:"total_batches,omitempty"`
	RejectReason       *string `json:"reject_reason,omitempty"`
}

// RegisterCategoryRequest maps a vendor format label to a marketplace
// category UUID.
type RegisterCategoryRequest struct {
	Name       string `json:"name" validate:"required"`
	CategoryID string `json:"category_id" validate:"required,uuid4"`
}

// RegisterCategoryResponse confirms the registration.
type RegisterCategoryResponse struct {
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
	TotalSize  int    `json:"total_size"`
}

// RunListItem is one row of the recent-runs listing.
type RunListItem struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	InputRows int    `json:"input_rows"`
	FinalRows int    `json:"final_rows"`
	StartedAt string `json:"started_at"`
}
