package businessflow

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oohgrid/billboard-etl/app/dto"
	"github.com/oohgrid/billboard-etl/config"
	"github.com/oohgrid/billboard-etl/docstore"
	"github.com/oohgrid/billboard-etl/ingest"
	"github.com/oohgrid/billboard-etl/models"
	"github.com/oohgrid/billboard-etl/pipeline"
	"github.com/oohgrid/billboard-etl/repository"
	"github.com/oohgrid/billboard-etl/runner"
	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

// ETLFlow is the use-case surface for pipeline runs.
type ETLFlow interface {
	ExecuteRun(ctx context.Context, req *dto.SubmitRunRequest) (*dto.SubmitRunResponse, error)
	RunStatus(ctx context.Context, runID string) (*dto.RunStatusResponse, error)
	ListRuns(ctx context.Context, limit int) ([]dto.RunListItem, error)
	RegisterCategory(ctx context.Context, req *dto.RegisterCategoryRequest) (*dto.RegisterCategoryResponse, error)
}

// ETLFlowImpl wires the ingest, transform, enrich and push stages together.
type ETLFlowImpl struct {
	billboardRepo repository.BillboardRepository
	runRepo       repository.PipelineRunRepository
	resolver      *pipeline.CategoryResolver
	geocoder      pipeline.Geocoder
	profileClient runner.BatchSubmitter
	checkpoints   *runner.CheckpointStore
	profileStore  *docstore.ProfileStore
	cfg           *config.Config
	logger        *utils.Logger
}

// NewETLFlow creates a new ETL flow instance. geocoder and profileClient may
// be nil when the corresponding integration is disabled.
func NewETLFlow(
	billboardRepo repository.BillboardRepository,
	runRepo repository.PipelineRunRepository,
	resolver *pipeline.CategoryResolver,
	geocoder pipeline.Geocoder,
	profileClient runner.BatchSubmitter,
	checkpoints *runner.CheckpointStore,
	profileStore *docstore.ProfileStore,
	cfg *config.Config,
	logger *utils.Logger,
) ETLFlow {
	return &ETLFlowImpl{
		billboardRepo: billboardRepo,
		runRepo:       runRepo,
		resolver:      resolver,
		geocoder:      geocoder,
		profileClient: profileClient,
		checkpoints:   checkpoints,
		profileStore:  profileStore,
		cfg:           cfg,
		logger:        logger,
	}
}

// ExecuteRun performs one end-to-end run: ingest, transform, validate,
// persist, and optionally push profiles. Structural rejection is reported in
// the response, not as an error; only infrastructure failures return errors.
func (s *ETLFlowImpl) ExecuteRun(ctx context.Context, req *dto.SubmitRunRequest) (*dto.SubmitRunResponse, error) {
	if _, err := os.Stat(req.SourceFile); err != nil {
		return nil, NewBusinessError("SOURCE_FILE_MISSING", "Source file does not exist", ErrSourceFileMissing)
	}

	runID := uuid.New().String()
	run := &models.PipelineRun{
		RunID:            runID,
		SourceFile:       req.SourceFile,
		OriginalFilename: req.OriginalFilename,
		Status:           models.RunStatusRunning,
		StartedAt:        utils.UTCNow(),
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, NewBusinessError("RUN_SAVE_FAILED", "Failed to record pipeline run", err)
	}

	s.logger.Info("[flow] run %s: ingesting %s", runID, req.SourceFile)
	batch, err := ingest.ReadFile(req.SourceFile)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, NewBusinessError("INGEST_FAILED", "Failed to read source file", err)
	}

	p := pipeline.New(pipeline.Config{
		SourceFile:       req.SourceFile,
		OriginalFilename: req.OriginalFilename,
		RenameMapping:    req.RenameMapping,
		StaticMapping:    req.StaticMapping,
		KeepColumns:      req.KeepColumns,
		CoordOrder:       s.coordOrder(req.CoordinateOrder),
	}, s.geocoder, s.logger)
	p.SetRequestInterval(s.cfg.Geocoder.RequestInterval)

	out, report := p.Run(ctx, batch)

	run.InputRows = report.InputRows
	run.FinalRows = report.Validation.FinalRows
	run.DroppedImages = report.Validation.DroppedImages
	run.DroppedCoords = report.Validation.DroppedCoords

	if report.MissingIDColumn || report.Validation.Rejected {
		reason := report.Validation.RejectReason
		if report.MissingIDColumn {
			reason = "no billboard_id column"
		}
		run.Status = models.RunStatusRejected
		run.RejectReason = &reason
		run.FinishedAt = utils.UTCNowPtr()
		if err := s.runRepo.Update(ctx, run); err != nil {
			return nil, NewBusinessError("RUN_UPDATE_FAILED", "Failed to update pipeline run", err)
		}
		return &dto.SubmitRunResponse{RunID: runID, Status: run.Status, Report: report}, nil
	}

	outputPath := ingest.OutputPath(s.cfg.Paths.OutputDir, outputName(req))
	if err := ingest.WriteCSV(outputPath, out); err != nil {
		s.failRun(ctx, run, err)
		return nil, NewBusinessError("OUTPUT_WRITE_FAILED", "Failed to write output file", err)
	}

	// category resolution feeds both the persisted records and the operator's
	// missing-categories report
	missing := s.resolveCategories(out)
	if len(missing) > 0 {
		s.logger.Warn("[flow] run %s: %d format types have no category mapping: %s",
			runID, len(missing), strings.Join(missing, ", "))
	}

	billboards := make([]*models.Billboard, 0, out.Len())
	for _, rec := range out.Rows {
		billboards = append(billboards, billboardFromRecord(rec, runID))
	}
	if err := s.billboardRepo.UpsertBatch(ctx, billboards); err != nil {
		s.failRun(ctx, run, err)
		return nil, NewBusinessError("PERSIST_FAILED", "Failed to persist billboards", err)
	}

	resp := &dto.SubmitRunResponse{
		RunID:             runID,
		Status:            models.RunStatusCompleted,
		OutputFile:        outputPath,
		MissingCategories: missing,
		Report:            report,
	}

	if req.BuildListings {
		listingsPath, err := s.writeListings(ctx, req, out)
		if err != nil {
			s.failRun(ctx, run, err)
			return nil, NewBusinessError("LISTINGS_WRITE_FAILED", "Failed to build listings file", err)
		}
		resp.ListingsFile = listingsPath
	}

	if req.PushProfiles && s.cfg.ProfileAPI.Enabled && s.profileClient != nil {
		summary, err := s.pushProfiles(ctx, runID, out)
		if err != nil {
			s.failRun(ctx, run, err)
			return nil, NewBusinessError("PROFILE_PUSH_FAILED", "Profile push failed", err)
		}
		run.PushedRecords = summary.TotalProcessed
		run.PushSuccess = summary.TotalSuccess
		run.PushErrors = summary.TotalErrors
		resp.Push = &dto.PushSummary{
			TotalRecords: summary.TotalProcessed,
			TotalSuccess: summary.TotalSuccess,
			TotalErrors:  summary.TotalErrors,
			SuccessRate:  summary.SuccessRate,
		}
	}

	run.Status = models.RunStatusCompleted
	run.FinishedAt = utils.UTCNowPtr()
	if err := s.runRepo.Update(ctx, run); err != nil {
		return nil, NewBusinessError("RUN_UPDATE_FAILED", "Failed to update pipeline run", err)
	}

	return resp, nil
}

// RunStatus reports a run's progress, preferring live checkpoint state over
// the persisted audit row.
func (s *ETLFlowImpl) RunStatus(ctx context.Context, runID string) (*dto.RunStatusResponse, error) {
	run, err := s.runRepo.ByRunID(ctx, runID)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to look up pipeline run", err)
	}
	if run == nil {
		return nil, NewBusinessError("RUN_NOT_FOUND", "Pipeline run not found", ErrRunNotFound)
	}

	resp := &dto.RunStatusResponse{
		RunID:         run.RunID,
		Status:        run.Status,
		InputRows:     run.InputRows,
		FinalRows:     run.FinalRows,
		DroppedImages: run.DroppedImages,
		DroppedCoords: run.DroppedCoords,
		PushSuccess:   run.PushSuccess,
		PushErrors:    run.PushErrors,
		RejectReason:  run.RejectReason,
	}

	if cp, ok := s.checkpoints.LoadCheckpoint(runID); ok {
		resp.LastCompletedBatch = cp.Data.LastCompletedBatch
		resp.TotalBatches = cp.Data.TotalBatches
	}
	return resp, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *ETLFlowImpl) ListRuns(ctx context.Context, limit int) ([]dto.RunListItem, error) {
	runs, err := s.runRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, NewBusinessError("RUN_LIST_FAILED", "Failed to list pipeline runs", err)
	}

	items := make([]dto.RunListItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.RunListItem{
			RunID:     run.RunID,
			Status:    run.Status,
			InputRows: run.InputRows,
			FinalRows: run.FinalRows,
			StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return items, nil
}

// RegisterCategory adds a format-type to category mapping and hot-reloads
// the resolver.
func (s *ETLFlowImpl) RegisterCategory(ctx context.Context, req *dto.RegisterCategoryRequest) (*dto.RegisterCategoryResponse, error) {
	id, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, NewBusinessError("CATEGORY_ID_INVALID", "Category id is not a valid uuid", ErrCategoryIDInvalid)
	}
	if err := s.resolver.Register(req.Name, id); err != nil {
		return nil, NewBusinessError("CATEGORY_REGISTER_FAILED", "Failed to register category", err)
	}

	s.logger.Info("[flow] registered category %q -> %s", req.Name, id)
	return &dto.RegisterCategoryResponse{
		Name:       req.Name,
		CategoryID: id.String(),
		TotalSize:  s.resolver.Size(),
	}, nil
}

// pushProfiles runs the batched profile submission with both persistence
// sinks attached.
func (s *ETLFlowImpl) pushProfiles(ctx context.Context, runID string, out *pipeline.Batch) (*runner.Summary, error) {
	sinks := []runner.ResultSink{&statusSink{repo: s.billboardRepo}}
	if s.profileStore != nil {
		sinks = append(sinks, s.profileStore)
	}

	r := runner.New(s.profileClient, s.checkpoints, sinks, runner.Options{
		BatchSize:  s.cfg.Pipeline.BatchSize,
		RetryCount: s.cfg.Pipeline.RetryCount,
		RetryDelay: s.cfg.Pipeline.RetryDelay,
		Logger:     s.logger,
	})

	summary, err := r.Run(ctx, runID, out)
	if err != nil {
		return nil, err
	}

	// failed records never reach the sinks; record their status here
	for _, res := range summary.Results {
		if res.Success() {
			continue
		}
		msg := res.Error
		if uerr := s.billboardRepo.UpdateProfileStatus(ctx, res.BillboardID, models.ProfileStatusError, &msg); uerr != nil {
			s.logger.Warn("[flow] run %s: failed to record error status for %s: %v", runID, res.BillboardID, uerr)
		}
	}
	return summary, nil
}

// writeListings builds marketplace listings from the validated batch and
// writes them to the output directory as a JSON document.
func (s *ETLFlowImpl) writeListings(ctx context.Context, req *dto.SubmitRunRequest, out *pipeline.Batch) (string, error) {
	listings, unmapped := pipeline.BuildListings(ctx, out, s.resolver, s.geocoder, pipeline.ListingOptions{
		OrganizationID:  s.cfg.Listing.OrganizationID,
		OwnerID:         s.cfg.Listing.OwnerID,
		Workers:         s.cfg.Geocoder.Workers,
		RequestInterval: s.cfg.Geocoder.RequestInterval,
		Logger:          s.logger,
	})
	if len(unmapped) > 0 {
		s.logger.Warn("[flow] listings built with %d unmapped format types", len(unmapped))
	}

	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return "", err
	}

	name := outputName(req)
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	path := filepath.Join(s.cfg.Paths.OutputDir, "listings_"+base+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// resolveCategories assigns category ids in place and returns the sorted set
// of unmapped format types.
func (s *ETLFlowImpl) resolveCategories(b *pipeline.Batch) []string {
	missing := make(map[string]struct{})
	for _, rec := range b.Rows {
		if rec.FormatType == "" {
			continue
		}
		if id, ok := s.resolver.Resolve(rec.FormatType); ok {
			catID := id
			rec.CategoryID = &catID
		} else {
			missing[rec.FormatType] = struct{}{}
		}
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *ETLFlowImpl) coordOrder(raw string) pipeline.CoordinateOrder {
	order := pipeline.CoordinateOrder(raw)
	if !order.Valid() {
		order = pipeline.CoordinateOrder(s.cfg.Pipeline.CoordinateOrder)
	}
	return order
}

func (s *ETLFlowImpl) failRun(ctx context.Context, run *models.PipelineRun, cause error) {
	reason := cause.Error()
	if len(reason) > 250 {
		reason = reason[:250]
	}
	run.Status = models.RunStatusFailed
	run.RejectReason = &reason
	run.FinishedAt = utils.UTCNowPtr()
	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Error("[flow] run %s: failed to record failure: %v", run.RunID, err)
	}
}

// statusSink marks successfully classified billboards in the relational
// store.
type statusSink struct {
	repo repository.BillboardRepository
}

func (s *statusSink) PersistProfiles(ctx context.Context, runID string, results []services.ProfileResult) error {
	for _, res := range results {
		if !res.Success() {
			continue
		}
		if err := s.repo.UpdateProfileStatus(ctx, res.BillboardID, models.ProfileStatusSuccess, nil); err != nil {
			return err
		}
	}
	return nil
}

// billboardFromRecord converts a validated pipeline record into the
// relational model.
func billboardFromRecord(rec *pipeline.Record, runID string) *models.Billboard {
	return &models.Billboard{
		BillboardID:        rec.BillboardID,
		RunID:              runID,
		FormatType:         rec.FormatType,
		LightingType:       rec.LightingType,
		CategoryID:         rec.CategoryID,
		Latitude:           rec.Latitude,
		Longitude:          rec.Longitude,
		City:               rec.City,
		District:           rec.District,
		Area:               rec.Area,
		Location:           rec.Location,
		WidthFt:            rec.WidthFt,
		HeightFt:           rec.HeightFt,
		Quantity:           rec.Quantity,
		FrequencyPerMinute: rec.FrequencyPerMinute,
		BaseRatePerMonth:   rec.BaseRatePerMonth,
		BaseRatePerUnit:    rec.BaseRatePerUnit,
		CardRatePerMonth:   rec.CardRatePerMonth,
		CardRatePerUnit:    rec.CardRatePerUnit,
		ImageURLs:          pq.StringArray(services.SplitImageURLs(rec.ImageURLs)),
		ProfileStatus:      models.ProfileStatusPending,
	}
}

func outputName(req *dto.SubmitRunRequest) string {
	if req.OriginalFilename != "" {
		return req.OriginalFilename
	}
	return req.SourceFile
}
