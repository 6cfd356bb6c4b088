// Copyright 2025 ArkApply Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package txn

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"arkapply/internal/fsatomic"
)

// Status is the terminal state of a run or of one operation within it.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusSuccess  Status = "SUCCESS"
	StatusNoOp     Status = "NO_OP"
	StatusFail     Status = "FAIL"
	StatusSkipped  Status = "SKIPPED"
	StatusNoChange Status = "NO_CHANGE"
)

// OperationResult records the outcome of one operation in execution order.
type OperationResult struct {
	Index  int    `json:"index"`
	Action Action `json:"action"`
	Path   string `json:"path"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Receipt is the machine-readable account of a run: what was attempted,
// what changed, the resulting fingerprints, and how rollback went if the
// run failed. It is written even when the run aborts.
type Receipt struct {
	RunID          string            `json:"run_id"`
	Status         Status            `json:"status"`
	DryRun         bool              `json:"dry_run,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	Operations     []OperationResult `json:"operations"`
	UpdatedFiles   []string          `json:"updated_files"`
	Fingerprints   map[string]string `json:"fingerprints"`
	Error          string            `json:"error,omitempty"`
	RolledBack     bool              `json:"rolled_back,omitempty"`
	RollbackErrors []string          `json:"rollback_errors,omitempty"`
}

// newReceipt starts a receipt for a fresh run.
func newReceipt(dryRun bool, now time.Time) *Receipt {
	return &Receipt{
		RunID:        uuid.New().String(),
		Status:       StatusRunning,
		DryRun:       dryRun,
		StartedAt:    now.UTC(),
		UpdatedFiles: []string{},
		Fingerprints: map[string]string{},
	}
}

// recordOp appends one operation outcome.
func (r *Receipt) recordOp(index int, op *Operation, status Status, detail string) {
	r.Operations = append(r.Operations, OperationResult{
		Index:  index,
		Action: op.Action,
		Path:   op.Path,
		Status: status,
		Detail: detail,
	})
}

// finish settles the terminal run status. A run with no effective changes
// is NO_OP rather than SUCCESS.
func (r *Receipt) finish(err error, now time.Time) {
	r.FinishedAt = now.UTC()
	switch {
	case err != nil:
		r.Status = StatusFail
		r.Error = err.Error()
	case len(r.UpdatedFiles) == 0:
		r.Status = StatusNoOp
	default:
		r.Status = StatusSuccess
	}
}

// Emitter persists receipts into a workspace directory.
type Emitter struct {
	Dir string
}

// Emit writes the receipt atomically and returns the path it landed at.
// Receipt names embed the start timestamp and a run-id prefix so a
// directory listing sorts chronologically.
func (e *Emitter) Emit(r *Receipt) (string, error) {
	name := fmt.Sprintf("receipt_%s_%s.json", r.StartedAt.Format("20060102T150405Z"), r.RunID[:8])
	path := filepath.Join(e.Dir, name)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize receipt: %w", err)
	}
	if err := fsatomic.WriteFileMkdir(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	return path, nil
}
