package runner

import (
	"context"
	"strconv"
	"time"

	"github.com/oohgrid/billboard-etl/pipeline"
	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

// Default batching parameters. Ten records per call keeps the profile API's
// ML stage inside its own timeout; the minute-long delay matches its rate
// limit window.
const (
	DefaultBatchSize  = 10
	DefaultRetryCount = 3
	DefaultRetryDelay = 60 * time.Second
)

// Checkpoint status values.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// BatchSubmitter is the slice of the profile client the runner needs.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, batchID string, billboards []services.BillboardPayload) ([]services.ProfileResult, error)
}

// ResultSink persists successful profile results. The document store and the
// relational store both implement it; failures of one sink abort the run so
// the checkpoint can resume it.
type ResultSink interface {
	PersistProfiles(ctx context.Context, runID string, results []services.ProfileResult) error
}

// Summary is the final accounting of one push run.
type Summary struct {
	RunID          string                   `json:"run_id"`
	Timestamp      string                   `json:"timestamp"`
	TotalRecords   int                      `json:"total_records"`
	TotalBatches   int                      `json:"total_batches"`
	BatchSize      int                      `json:"batch_size"`
	TotalProcessed int                      `json:"total_processed"`
	TotalSuccess   int                      `json:"total_success"`
	TotalErrors    int                      `json:"total_errors"`
	SuccessRate    float64                  `json:"success_rate"`
	ElapsedSeconds float64                  `json:"execution_time_seconds"`
	Results        []services.ProfileResult `json:"results"`
}

// Options configures a Runner. Zero values fall back to the defaults above.
type Options struct {
	BatchSize  int
	RetryCount int
	RetryDelay time.Duration
	// Executor overrides the default fixed-delay retry strategy.
	Executor Executor
	Logger   *utils.Logger
}

// Runner pushes a validated batch through the profile API in fixed-size
// chunks with retries, checkpointing after every chunk so an interrupted run
// resumes where it stopped instead of re-submitting classified records.
type Runner struct {
	submitter BatchSubmitter
	store     *CheckpointStore
	sinks     []ResultSink

	batchSize int
	exec      Executor
	logger    *utils.Logger
}

// New creates a runner. sinks may be empty for dry runs.
func New(submitter BatchSubmitter, store *CheckpointStore, sinks []ResultSink, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewStdoutLogger()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	retryCount := opts.RetryCount
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	exec := opts.Executor
	if exec == nil {
		exec = &RetryConfig{MaxAttempts: retryCount, Delay: retryDelay, Logger: logger}
	}
	return &Runner{
		submitter: submitter,
		store:     store,
		sinks:     sinks,
		batchSize: batchSize,
		exec:      exec,
		logger:    logger,
	}
}

// Run submits every record of the batch and returns the full accounting.
// A batch that still fails after retries marks each of its records as an
// error and the run continues; only sink and checkpoint failures abort.
func (r *Runner) Run(ctx context.Context, runID string, b *pipeline.Batch) (*Summary, error) {
	start := time.Now()

	payloads := make([]services.BillboardPayload, 0, b.Len())
	for _, rec := range b.Rows {
		payloads = append(payloads, services.PayloadFromRecord(rec))
	}

	totalRecords := len(payloads)
	totalBatches := (totalRecords + r.batchSize - 1) / r.batchSize

	summary := &Summary{
		RunID:        runID,
		TotalRecords: totalRecords,
		TotalBatches: totalBatches,
		BatchSize:    r.batchSize,
	}

	startBatch := 1
	if cp, ok := r.store.LoadCheckpoint(runID); ok && cp.Data.TotalRecords == totalRecords {
		startBatch = cp.Data.LastCompletedBatch + 1
		summary.TotalProcessed = cp.Data.TotalProcessed
		summary.TotalSuccess = cp.Data.TotalSuccess
		summary.TotalErrors = cp.Data.TotalErrors
		r.logger.Info("[runner] run %s resuming from batch %d/%d", runID, startBatch, totalBatches)
	}

	for batchNum := 1; batchNum <= totalBatches; batchNum++ {
		lo := (batchNum - 1) * r.batchSize
		hi := lo + r.batchSize
		if hi > totalRecords {
			hi = totalRecords
		}
		chunk := payloads[lo:hi]

		if batchNum < startBatch {
			// already classified in a previous attempt of this run
			continue
		}

		r.logger.Info("[runner] run %s batch %d/%d: submitting %d records",
			runID, batchNum, totalBatches, len(chunk))

		var results []services.ProfileResult
		err := r.exec.RunWithRetry(ctx, "profile batch "+strconv.Itoa(batchNum), func() error {
			var submitErr error
			results, submitErr = r.submitter.SubmitBatch(ctx, batchID(runID, batchNum), chunk)
			return submitErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			r.logger.Error("[runner] run %s batch %d failed after retries: %v", runID, batchNum, err)
			results = failedBatchResults(chunk, err)
		}

		if err := r.persistSuccesses(ctx, runID, results); err != nil {
			return summary, err
		}
		if err := r.store.SaveBatchResults(runID, batchNum, results); err != nil {
			return summary, err
		}

		for _, res := range results {
			if res.Success() {
				summary.TotalSuccess++
			} else {
				summary.TotalErrors++
			}
		}
		summary.TotalProcessed += len(chunk)

		if err := r.store.SaveCheckpoint(runID, CheckpointData{
			LastCompletedBatch: batchNum,
			TotalBatches:       totalBatches,
			TotalRecords:       totalRecords,
			TotalProcessed:     summary.TotalProcessed,
			TotalSuccess:       summary.TotalSuccess,
			TotalErrors:        summary.TotalErrors,
			Status:             StatusInProgress,
		}); err != nil {
			return summary, err
		}

		r.logger.Info("[runner] run %s batch %d/%d complete: %d success, %d errors so far",
			runID, batchNum, totalBatches, summary.TotalSuccess, summary.TotalErrors)
	}

	// assemble the full result set, including batches from earlier attempts
	saved, err := r.store.LoadAllBatchResults(runID)
	if err != nil {
		return summary, err
	}
	summary.Results = summary.Results[:0]
	summary.TotalSuccess = 0
	summary.TotalErrors = 0
	for batchNum := 1; batchNum <= totalBatches; batchNum++ {
		for _, res := range saved[batchNum] {
			summary.Results = append(summary.Results, res)
			if res.Success() {
				summary.TotalSuccess++
			} else {
				summary.TotalErrors++
			}
		}
	}
	summary.TotalProcessed = len(summary.Results)

	summary.Timestamp = utils.UTCNowRFC3339()
	summary.ElapsedSeconds = time.Since(start).Seconds()
	if totalRecords > 0 {
		summary.SuccessRate = float64(summary.TotalSuccess) / float64(totalRecords) * 100
	}

	if err := r.store.Cleanup(runID); err != nil {
		r.logger.Warn("[runner] run %s: state cleanup failed: %v", runID, err)
	}

	r.logger.Info("[runner] run %s finished: %d/%d success (%.1f%%) in %.1fs",
		runID, summary.TotalSuccess, totalRecords, summary.SuccessRate, summary.ElapsedSeconds)
	return summary, nil
}

func (r *Runner) persistSuccesses(ctx context.Context, runID string, results []services.ProfileResult) error {
	successes := make([]services.ProfileResult, 0, len(results))
	for _, res := range results {
		if res.Success() {
			successes = append(successes, res)
		}
	}
	if len(successes) == 0 {
		return nil
	}
	for _, sink := range r.sinks {
		if err := sink.PersistProfiles(ctx, runID, successes); err != nil {
			return err
		}
	}
	return nil
}

// failedBatchResults marks every record of an exhausted batch as an error so
// the accounting stays complete.
func failedBatchResults(chunk []services.BillboardPayload, err error) []services.ProfileResult {
	results := make([]services.ProfileResult, len(chunk))
	for i, p := range chunk {
		results[i] = services.ProfileResult{
			BillboardID: p.BillboardID,
			Status:      "error",
			Error:       err.Error(),
		}
	}
	return results
}

func batchID(runID string, batchNum int) string {
	return runID + "-b" + strconv.Itoa(batchNum)
}
