package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oohgrid/billboard-etl/app/dto"
	"github.com/oohgrid/billboard-etl/config"
	"github.com/oohgrid/billboard-etl/models"
	"github.com/oohgrid/billboard-etl/pipeline"
	"github.com/oohgrid/billboard-etl/runner"
	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

// stubBillboardRepo keeps upserted billboards and status updates in memory.
type stubBillboardRepo struct {
	upserted []*models.Billboard
	statuses map[string]string
	errs     map[string]string
}

func newStubBillboardRepo() *stubBillboardRepo {
	return &stubBillboardRepo{statuses: map[string]string{}, errs: map[string]string{}}
}

func (r *stubBillboardRepo) ByID(context.Context, uint) (*models.Billboard, error) { return nil, nil }
func (r *stubBillboardRepo) ByFilter(context.Context, models.BillboardFilter, string, int, int) ([]*models.Billboard, error) {
	return nil, nil
}
func (r *stubBillboardRepo) Save(context.Context, *models.Billboard) error       { return nil }
func (r *stubBillboardRepo) SaveBatch(context.Context, []*models.Billboard) error { return nil }
func (r *stubBillboardRepo) ByBillboardID(_ context.Context, id string) (*models.Billboard, error) {
	for _, b := range r.upserted {
		if b.BillboardID == id {
			return b, nil
		}
	}
	return nil, nil
}
func (r *stubBillboardRepo) Upsert(_ context.Context, b *models.Billboard) error {
	r.upserted = append(r.upserted, b)
	return nil
}
func (r *stubBillboardRepo) UpsertBatch(_ context.Context, bs []*models.Billboard) error {
	r.upserted = append(r.upserted, bs...)
	return nil
}
func (r *stubBillboardRepo) UpdateProfileStatus(_ context.Context, billboardID, status string, profileErr *string) error {
	r.statuses[billboardID] = status
	if profileErr != nil {
		r.errs[billboardID] = *profileErr
	}
	return nil
}
func (r *stubBillboardRepo) ListByRun(context.Context, string) ([]*models.Billboard, error) {
	return r.upserted, nil
}

// stubRunRepo keeps run audit rows in memory.
type stubRunRepo struct {
	runs []*models.PipelineRun
}

func (r *stubRunRepo) ByID(context.Context, uint) (*models.PipelineRun, error) { return nil, nil }
func (r *stubRunRepo) ByFilter(context.Context, models.PipelineRunFilter, string, int, int) ([]*models.PipelineRun, error) {
	return nil, nil
}
func (r *stubRunRepo) Save(_ context.Context, run *models.PipelineRun) error {
	r.runs = append(r.runs, run)
	return nil
}
func (r *stubRunRepo) SaveBatch(context.Context, []*models.PipelineRun) error { return nil }
func (r *stubRunRepo) ByRunID(_ context.Context, runID string) (*models.PipelineRun, error) {
	for _, run := range r.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return nil, nil
}
func (r *stubRunRepo) Update(context.Context, *models.PipelineRun) error { return nil }
func (r *stubRunRepo) ListRecent(_ context.Context, limit int) ([]*models.PipelineRun, error) {
	if limit > 0 && limit < len(r.runs) {
		return r.runs[:limit], nil
	}
	return r.runs, nil
}

// stubSubmitter answers every billboard except the ones listed in failIDs.
type stubSubmitter struct {
	failIDs map[string]bool
	err     error
}

func (s *stubSubmitter) SubmitBatch(_ context.Context, _ string, billboards []services.BillboardPayload) ([]services.ProfileResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := make([]services.ProfileResult, len(billboards))
	for i, p := range billboards {
		if s.failIDs[p.BillboardID] {
			results[i] = services.ProfileResult{BillboardID: p.BillboardID, Status: "error", Error: "no imagery"}
		} else {
			results[i] = services.ProfileResult{BillboardID: p.BillboardID, Status: "success"}
		}
	}
	return results, nil
}

type flowFixture struct {
	flow          ETLFlow
	billboardRepo *stubBillboardRepo
	runRepo       *stubRunRepo
	resolver      *pipeline.CategoryResolver
	cfg           *config.Config
}

func newFlowFixture(t *testing.T, submitter runner.BatchSubmitter) *flowFixture {
	t.Helper()

	resolver, err := pipeline.NewCategoryResolver(filepath.Join(t.TempDir(), "map.json"))
	require.NoError(t, err)

	checkpoints, err := runner.NewCheckpointStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		ProfileAPI: config.ProfileAPIConfig{Enabled: submitter != nil},
		Pipeline: config.PipelineConfig{
			BatchSize:       10,
			RetryCount:      1,
			RetryDelay:      time.Millisecond,
			CoordinateOrder: "lonlat",
		},
		Paths: config.PathsConfig{OutputDir: t.TempDir()},
	}

	billboardRepo := newStubBillboardRepo()
	runRepo := &stubRunRepo{}

	flow := NewETLFlow(billboardRepo, runRepo, resolver, nil, submitter,
		checkpoints, nil, cfg, utils.NewStdoutLogger())

	return &flowFixture{
		flow:          flow,
		billboardRepo: billboardRepo,
		runRepo:       runRepo,
		resolver:      resolver,
		cfg:           cfg,
	}
}

func writeSourceCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vendor.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const vendorCSV = "code,media type,lighting_type,coordinates,city,minimal_price,image_urls\n" +
	"BB-1,Bus Shelter,back lit,\"73.85, 18.52\",pune,\"Rs. 7,000\",http://img/a.jpg\n" +
	"BB-2,Hoarding,front lit,\"73.90, 18.60\",pune,9000,nan\n" +
	"BB-3,Hoarding,front lit,\"73.95, 18.65\",pune,9000,http://img/c.jpg\n"

func submitRequest(sourceFile string) *dto.SubmitRunRequest {
	return &dto.SubmitRunRequest{
		SourceFile:    sourceFile,
		RenameMapping: map[string]string{"code": "billboard_id", "media type": "format_type"},
	}
}

func TestExecuteRun(t *testing.T) {
	ctx := context.Background()

	t.Run("CompletedRunPersistsBillboards", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		catID := uuid.New()
		require.NoError(t, f.resolver.Register("Bus_Shelter", catID))

		res, err := f.flow.ExecuteRun(ctx, submitRequest(writeSourceCSV(t, vendorCSV)))
		require.NoError(t, err)

		assert.Equal(t, models.RunStatusCompleted, res.Status)
		assert.Equal(t, 3, res.Report.InputRows)
		assert.Equal(t, 1, res.Report.Validation.DroppedImages)
		assert.Equal(t, 2, res.Report.Validation.FinalRows)
		assert.Nil(t, res.Push)

		_, statErr := os.Stat(res.OutputFile)
		assert.NoError(t, statErr)

		require.Len(t, f.billboardRepo.upserted, 2)
		first := f.billboardRepo.upserted[0]
		assert.Equal(t, "BB-1", first.BillboardID)
		assert.Equal(t, res.RunID, first.RunID)
		assert.Equal(t, "Bus_Shelter", first.FormatType)
		require.NotNil(t, first.CategoryID)
		assert.Equal(t, catID, *first.CategoryID)
		assert.Equal(t, models.ProfileStatusPending, first.ProfileStatus)
		assert.Equal(t, []string{"http://img/a.jpg"}, []string(first.ImageURLs))

		// unmapped Hoarding stays uncategorized but is still persisted
		second := f.billboardRepo.upserted[1]
		assert.Equal(t, "BB-3", second.BillboardID)
		assert.Nil(t, second.CategoryID)
	})

	t.Run("BuildsListingsArtifact", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		f.cfg.Listing = config.ListingConfig{OrganizationID: "org-1", OwnerID: "owner-1"}
		require.NoError(t, f.resolver.Register("Bus_Shelter", uuid.New()))

		req := submitRequest(writeSourceCSV(t, vendorCSV))
		req.BuildListings = true

		res, err := f.flow.ExecuteRun(ctx, req)
		require.NoError(t, err)
		require.NotEmpty(t, res.ListingsFile)
		assert.Equal(t, []string{"Hoarding"}, res.MissingCategories)

		data, err := os.ReadFile(res.ListingsFile)
		require.NoError(t, err)

		var listings []pipeline.Listing
		require.NoError(t, json.Unmarshal(data, &listings))
		require.Len(t, listings, 2)
		assert.Equal(t, "org-1", listings[0].OrganizationID)
		assert.Equal(t, "owner-1", listings[0].OwnerID)
		assert.Equal(t, "BB-1", listings[0].SourceIID)
		assert.NotNil(t, listings[0].CategoryID)
		assert.Nil(t, listings[1].CategoryID)
	})

	t.Run("StructuralRejectionIsNotAnError", func(t *testing.T) {
		f := newFlowFixture(t, nil)

		noImages := "code,coordinates\nBB-1,\"73.85, 18.52\"\n"
		res, err := f.flow.ExecuteRun(ctx, submitRequest(writeSourceCSV(t, noImages)))
		require.NoError(t, err)

		assert.Equal(t, models.RunStatusRejected, res.Status)
		assert.True(t, res.Report.Validation.Rejected)
		assert.Empty(t, f.billboardRepo.upserted)

		run, err := f.runRepo.ByRunID(ctx, res.RunID)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, models.RunStatusRejected, run.Status)
		require.NotNil(t, run.RejectReason)
		assert.Equal(t, pipeline.RejectNoImageColumn, *run.RejectReason)
	})

	t.Run("MissingSourceFile", func(t *testing.T) {
		f := newFlowFixture(t, nil)

		_, err := f.flow.ExecuteRun(ctx, submitRequest(filepath.Join(t.TempDir(), "nope.csv")))
		require.Error(t, err)
		assert.True(t, IsSourceFileMissing(err))
	})

	t.Run("ProfilePushUpdatesStatuses", func(t *testing.T) {
		submitter := &stubSubmitter{failIDs: map[string]bool{"BB-3": true}}
		f := newFlowFixture(t, submitter)

		req := submitRequest(writeSourceCSV(t, vendorCSV))
		req.PushProfiles = true

		res, err := f.flow.ExecuteRun(ctx, req)
		require.NoError(t, err)

		require.NotNil(t, res.Push)
		assert.Equal(t, 2, res.Push.TotalRecords)
		assert.Equal(t, 1, res.Push.TotalSuccess)
		assert.Equal(t, 1, res.Push.TotalErrors)

		assert.Equal(t, models.ProfileStatusSuccess, f.billboardRepo.statuses["BB-1"])
		assert.Equal(t, models.ProfileStatusError, f.billboardRepo.statuses["BB-3"])
		assert.Equal(t, "no imagery", f.billboardRepo.errs["BB-3"])
	})

	t.Run("ProfilePushSkippedWhenDisabled", func(t *testing.T) {
		submitter := &stubSubmitter{}
		f := newFlowFixture(t, submitter)
		f.cfg.ProfileAPI.Enabled = false

		req := submitRequest(writeSourceCSV(t, vendorCSV))
		req.PushProfiles = true

		res, err := f.flow.ExecuteRun(ctx, req)
		require.NoError(t, err)
		assert.Nil(t, res.Push)
		assert.Empty(t, f.billboardRepo.statuses)
	})
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		_, err := f.flow.RunStatus(ctx, "unknown")
		require.Error(t, err)
		assert.True(t, IsRunNotFound(err))
	})

	t.Run("ReportsPersistedCounters", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		res, err := f.flow.ExecuteRun(ctx, submitRequest(writeSourceCSV(t, vendorCSV)))
		require.NoError(t, err)

		status, err := f.flow.RunStatus(ctx, res.RunID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, status.Status)
		assert.Equal(t, 3, status.InputRows)
		assert.Equal(t, 2, status.FinalRows)
		assert.Equal(t, 1, status.DroppedImages)
	})
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t, nil)

	_, err := f.flow.ExecuteRun(ctx, submitRequest(writeSourceCSV(t, vendorCSV)))
	require.NoError(t, err)

	items, err := f.flow.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.RunStatusCompleted, items[0].Status)
	assert.NotEmpty(t, items[0].StartedAt)
}

func TestRegisterCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidUUID", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		_, err := f.flow.RegisterCategory(ctx, &dto.RegisterCategoryRequest{
			Name: "Hoarding", CategoryID: "not-a-uuid",
		})
		require.Error(t, err)

		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "CATEGORY_ID_INVALID", be.Code)
	})

	t.Run("RegistersAndCounts", func(t *testing.T) {
		f := newFlowFixture(t, nil)
		id := uuid.New().String()

		res, err := f.flow.RegisterCategory(ctx, &dto.RegisterCategoryRequest{
			Name: "Hoarding", CategoryID: id,
		})
		require.NoError(t, err)
		assert.Equal(t, "Hoarding", res.Name)
		assert.Equal(t, id, res.CategoryID)
		assert.Equal(t, 1, res.TotalSize)

		got, ok := f.resolver.Resolve("hoarding")
		require.True(t, ok)
		assert.Equal(t, id, got.String())
	})
}
