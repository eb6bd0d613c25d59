// Package runner drives the batched push of processed billboard records
// through the profile API, with file-based checkpoints so an interrupted run
// can resume from the last completed batch.
package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oohgrid/billboard-etl/services"
	"github.com/oohgrid/billboard-etl/utils"
)

// Checkpoint is the mutable progress marker for one run, rewritten after
// every completed batch.
type Checkpoint struct {
	RunID     string         `json:"run_id"`
	Timestamp string         `json:"timestamp"`
	Data      CheckpointData `json:"data"`
}

// CheckpointData carries the resumable state plus the running counters, so
// an operator tailing the file sees progress without decoding batch files.
type CheckpointData struct {
	LastCompletedBatch int    `json:"last_completed_batch"`
	TotalBatches       int    `json:"total_batches"`
	TotalRecords       int    `json:"total_records"`
	TotalProcessed     int    `json:"total_processed"`
	TotalSuccess       int    `json:"total_success"`
	TotalErrors        int    `json:"total_errors"`
	Status             string `json:"status"`
}

// CheckpointStore persists run state under a single directory: one mutable
// checkpoint file per run plus one append-only result file per batch. Batch
// files are never rewritten; together with the checkpoint they let a resumed
// run skip completed batches and still assemble the full result set.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates the store, ensuring the state directory exists.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir %s: %w", dir, err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (s *CheckpointStore) checkpointPath(runID string) string {
	return filepath.Join(s.dir, runID+"_checkpoint.json")
}

func (s *CheckpointStore) batchPath(runID string, batchNum int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_batch_%d.json", runID, batchNum))
}

// SaveCheckpoint rewrites the run's progress marker.
func (s *CheckpointStore) SaveCheckpoint(runID string, data CheckpointData) error {
	cp := Checkpoint{
		RunID:     runID,
		Timestamp: utils.UTCNowRFC3339(),
		Data:      data,
	}
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := os.WriteFile(s.checkpointPath(runID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// LoadCheckpoint reads the run's progress marker. A missing or unreadable
// checkpoint means "start from scratch", not an error.
func (s *CheckpointStore) LoadCheckpoint(runID string) (*Checkpoint, bool) {
	raw, err := os.ReadFile(s.checkpointPath(runID))
	if err != nil {
		return nil, false
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, false
	}
	return &cp, true
}

// SaveBatchResults appends one batch's results as its own file.
func (s *CheckpointStore) SaveBatchResults(runID string, batchNum int, results []services.ProfileResult) error {
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch %d results: %w", batchNum, err)
	}
	if err := os.WriteFile(s.batchPath(runID, batchNum), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write batch %d results for run %s: %w", batchNum, runID, err)
	}
	return nil
}

// LoadAllBatchResults collects every persisted batch result for a run, keyed
// by batch number. Corrupt or misnamed files are skipped.
func (s *CheckpointStore) LoadAllBatchResults(runID string) (map[int][]services.ProfileResult, error) {
	pattern := filepath.Join(s.dir, runID+"_batch_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch files for run %s: %w", runID, err)
	}

	out := make(map[int][]services.ProfileResult, len(matches))
	for _, path := range matches {
		stem := strings.TrimSuffix(filepath.Base(path), ".json")
		numStr := stem[strings.LastIndex(stem, "_")+1:]
		batchNum, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var results []services.ProfileResult
		if err := json.Unmarshal(raw, &results); err != nil {
			continue
		}
		out[batchNum] = results
	}
	return out, nil
}

// Cleanup removes the checkpoint and all batch files for a finished run.
func (s *CheckpointStore) Cleanup(runID string) error {
	_ = os.Remove(s.checkpointPath(runID))

	matches, err := filepath.Glob(filepath.Join(s.dir, runID+"_batch_*.json"))
	if err != nil {
		return fmt.Errorf("failed to list batch files for run %s: %w", runID, err)
	}
	for _, path := range matches {
		_ = os.Remove(path)
	}
	return nil
}
