package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/oohgrid/billboard-etl/utils"
)

// Config is one run's transformation contract, supplied by the operator at
// submission time and immutable during the run.
type Config struct {
	SourceFile       string            `json:"source_file" validate:"required"`
	OriginalFilename string            `json:"original_filename"`
	RenameMapping    map[string]string `json:"rename_mapping"`
	StaticMapping    map[string]string `json:"static_mapping"`
	KeepColumns      []string          `json:"keep_columns"`
	CoordOrder       CoordinateOrder   `json:"coordinate_order,omitempty" validate:"omitempty,oneof=lonlat latlon"`
}

// RunReport summarizes one batch's trip through the stages. Zero FinalRows
// with MissingIDColumn or Validation.Rejected set means "check your mapping",
// not "input was empty".
type RunReport struct {
	InputRows        int              `json:"input_rows"`
	AfterStandardize int              `json:"after_standardize"`
	MissingIDColumn  bool             `json:"missing_id_column"`
	Validation       ValidationReport `json:"validation"`
	Elapsed          time.Duration    `json:"-"`
}

// Pipeline chains the transform stages over one in-memory batch in fixed
// order: standardize, geography, dimensions, financials, validate.
type Pipeline struct {
	cfg             Config
	geocoder        Geocoder
	logger          *utils.Logger
	requestInterval time.Duration
}

// New creates a pipeline. geocoder may be nil to disable the reverse-geocode
// fallback (offline runs, tests).
func New(cfg Config, geocoder Geocoder, logger *utils.Logger) *Pipeline {
	if logger == nil {
		logger = utils.NewStdoutLogger()
	}
	return &Pipeline{cfg: cfg, geocoder: geocoder, logger: logger}
}

// SetRequestInterval overrides the spacing between reverse-geocode calls.
func (p *Pipeline) SetRequestInterval(d time.Duration) { p.requestInterval = d }

// Run executes all stages over the batch and returns the validated result.
// Stages mutate rows in place; the batch passed in should not be reused.
func (p *Pipeline) Run(ctx context.Context, b *Batch) (*Batch, RunReport) {
	start := time.Now()
	report := RunReport{InputRows: b.Len()}

	ApplyMapping(b, p.cfg.RenameMapping, p.cfg.StaticMapping)

	b = Standardize(b)
	report.AfterStandardize = b.Len()
	if b.Len() == 0 && report.InputRows > 0 {
		if !b.HasColumn(ColBillboardID) {
			report.MissingIDColumn = true
			p.logger.Error("[pipeline] no billboard_id column after mapping; batch rejected")
		} else {
			p.logger.Warn("[pipeline] all %d rows dropped at standardization", report.InputRows)
		}
	}

	b = ExtractGeography(ctx, b, GeographyOptions{
		CoordOrder:      p.cfg.CoordOrder,
		Geocoder:        p.geocoder,
		RequestInterval: p.requestInterval,
		Logger:          p.logger,
	})
	b = FillDimensions(b)
	b = CalculateFinancials(b)

	var vr ValidationReport
	b, vr = Validate(b, p.cfg.KeepColumns)
	report.Validation = vr
	report.Elapsed = time.Since(start)

	if vr.Rejected {
		p.logger.Error("[pipeline] batch rejected at validation: %s", vr.RejectReason)
	} else {
		p.logger.Info("[pipeline] %d in, %d out (%d dropped for images, %d for coordinates) in %s",
			report.InputRows, vr.FinalRows, vr.DroppedImages, vr.DroppedCoords, report.Elapsed.Round(time.Millisecond))
	}
	return b, report
}

// ApplyMapping renames vendor columns onto canonical names and injects
// static-value columns, in that order, before the first stage runs. Renames
// are simultaneous over the original keys, and static columns are added in
// sorted name order, so the resulting column order is stable across runs.
func ApplyMapping(b *Batch, rename map[string]string, static map[string]string) {
	if len(rename) > 0 {
		order := b.Columns()
		renamed := NewBatch(nil)
		for _, c := range order {
			if target, ok := rename[c]; ok {
				renamed.AddColumn(target)
			} else {
				renamed.AddColumn(c)
			}
		}
		for _, row := range b.Rows {
			moved := make(map[string]string, len(rename))
			for src, target := range rename {
				if v, ok := row.Raw[src]; ok {
					delete(row.Raw, src)
					moved[target] = v
				}
			}
			for target, v := range moved {
				row.Raw[target] = v
			}
		}
		renamed.Rows = b.Rows
		*b = *renamed
	}

	staticCols := make([]string, 0, len(static))
	for col := range static {
		staticCols = append(staticCols, col)
	}
	sort.Strings(staticCols)
	for _, col := range staticCols {
		b.AddColumn(col)
		for _, row := range b.Rows {
			row.Raw[col] = static[col]
		}
	}
}
