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

// Package txn executes ordered batches of declarative file modifications
// with all-or-nothing semantics. Each operation is gated by an optional
// fingerprint precondition, guarded against accidental truncation, written
// atomically with a pre-mutation backup, and verified by read-back. The
// first failure aborts the batch and rolls back every prior side effect.
package txn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"arkapply/internal/backup"
	"arkapply/internal/checksum"
	"arkapply/internal/common"
	"arkapply/internal/fsatomic"
	"arkapply/internal/util"
	"arkapply/internal/workspace"
)

// Engine executes modification batches against one workspace root.
type Engine struct {
	Root    string
	Backups *backup.Manager
	Config  *workspace.Config
	DryRun  bool

	// protected is the workspace-relative control directory; operations
	// may never target the engine's own bookkeeping.
	protected string

	now func() time.Time
}

// NewEngine builds an engine for ws. Dry runs evaluate every operation,
// including preconditions and guards, without touching the tree.
func NewEngine(ws *workspace.Workspace, dryRun bool) *Engine {
	return &Engine{
		Root:      ws.Root,
		Backups:   backup.NewManager(ws.BackupDir(), ws.Config.BackupRetention),
		Config:    ws.Config,
		DryRun:    dryRun,
		protected: common.ToSlashRel(ws.Root, ws.ControlDir()),
		now:       time.Now,
	}
}

// Execute runs ops in order and returns a receipt regardless of outcome.
// On the first failing operation the remaining ones are skipped, recorded
// side effects are rolled back in reverse, and the error is returned
// alongside the receipt.
func (e *Engine) Execute(ctx context.Context, ops []Operation) (*Receipt, error) {
	r := newReceipt(e.DryRun, e.now())
	logger := log.WithField("run_id", r.RunID[:8])

	undo := &undoLog{}
	var runErr error
	for i := range ops {
		op := &ops[i]
		if err := op.Validate(); err != nil {
			runErr = fmt.Errorf("operation %d: %w", i+1, err)
			r.recordOp(i+1, op, StatusFail, err.Error())
			break
		}
		logger.WithFields(log.Fields{"action": op.Action, "path": op.Path}).Debug("Executing operation")
		status, detail, err := e.processOperation(ctx, op, undo, r)
		if err != nil {
			runErr = fmt.Errorf("operation %d (%s %s): %w", i+1, op.Action, op.Path, err)
			r.recordOp(i+1, op, StatusFail, err.Error())
			break
		}
		r.recordOp(i+1, op, status, detail)
	}

	if runErr != nil {
		for i := len(r.Operations); i < len(ops); i++ {
			r.recordOp(i+1, &ops[i], StatusSkipped, "")
		}
		if !e.DryRun {
			logger.WithError(runErr).Warn("Run failed, rolling back")
			r.RolledBack = true
			for _, rbErr := range undo.rollback() {
				r.RollbackErrors = append(r.RollbackErrors, rbErr.Error())
			}
		}
		// A rolled-back run changed nothing.
		r.UpdatedFiles = []string{}
		r.Fingerprints = map[string]string{}
	}
	r.finish(runErr, e.now())
	return r, runErr
}

// processOperation runs one operation through the shared pipeline: path
// containment, current-state read with bounded retry, fingerprint
// precondition, action dispatch, and for content writes the no-change
// check, truncation guard, backup, atomic write and read-back.
func (e *Engine) processOperation(ctx context.Context, op *Operation, undo *undoLog, r *Receipt) (Status, string, error) {
	target, err := common.SafeJoin(e.Root, common.NormalizePath(op.Path))
	if err != nil {
		return "", "", fmt.Errorf("%w: %s resolves outside workspace root", ErrSecurity, op.Path)
	}
	rel := common.ToSlashRel(e.Root, target)
	if rel == e.protected || strings.HasPrefix(rel, e.protected+"/") {
		return "", "", fmt.Errorf("%w: %s targets the control directory", ErrSecurity, op.Path)
	}

	// Directories have no content to read or fingerprint.
	if op.Action == ActionCreateDirectory {
		return e.applyCreateDirectory(target, rel, undo, r)
	}

	existing, exists, err := e.readTarget(ctx, target)
	if err != nil {
		return "", "", err
	}

	if op.ExpectedBefore != "" {
		actual := checksum.EmptyFingerprint
		if exists {
			actual = checksum.Fingerprint(existing)
		}
		if actual != op.ExpectedBefore {
			return "", "", &StateConflictError{Path: rel, Expected: op.ExpectedBefore, Actual: actual}
		}
	}

	if op.Action == ActionDeleteFile {
		return e.applyDeleteFile(target, rel, exists, undo, r)
	}

	final, status, detail, err := e.resolveContent(op, rel, existing, exists)
	if err != nil || status == StatusNoChange {
		return status, detail, err
	}

	// Effective no-op: the clean fingerprint is unchanged, so skip the
	// write and leave the file untouched.
	if exists && checksum.Fingerprint(existing) == checksum.Fingerprint(final) {
		return StatusNoChange, "content already up to date", nil
	}

	if err := e.writeTarget(ctx, op, target, rel, existing, exists, final, undo, r); err != nil {
		return "", "", err
	}
	return StatusSuccess, "", nil
}

// resolveContent computes the full post-operation content for the
// content-bearing actions. A NO_CHANGE status short-circuits the write.
func (e *Engine) resolveContent(op *Operation, rel string, existing []byte, exists bool) ([]byte, Status, string, error) {
	switch op.Action {
	case ActionCreateFile:
		if exists {
			return nil, "", "", &StateConflictError{Path: rel, Reason: "file already exists"}
		}
		content, err := op.TextContent()
		return content, "", "", err

	case ActionModifyFile:
		if !exists {
			return nil, "", "", &StateConflictError{Path: rel, Reason: "file does not exist"}
		}
		content, err := op.TextContent()
		if err != nil {
			return nil, "", "", err
		}
		if truncated, reason := detectTruncation(checksum.StripTags(existing), content, e.Config.ExtraMarkers); truncated {
			return nil, "", "", &DataLossError{Path: rel, Reason: reason}
		}
		return content, "", "", nil

	case ActionReplaceInFile:
		if !exists {
			return nil, "", "", &StateConflictError{Path: rel, Reason: "file does not exist"}
		}
		spec, err := op.Replace()
		if err != nil {
			return nil, "", "", err
		}
		final, count, err := replaceInFile(e.cleanBase(op.Path, existing), spec)
		if err != nil {
			return nil, "", "", err
		}
		if count == 0 {
			if e.Config.ReplaceZeroMatchFails {
				return nil, "", "", &StateConflictError{Path: rel, Reason: fmt.Sprintf("pattern %q not found", spec.Pattern)}
			}
			return nil, StatusNoChange, "pattern not found", nil
		}
		if truncated, reason := detectTruncation(checksum.StripTags(existing), final, e.Config.ExtraMarkers); truncated {
			return nil, "", "", &DataLossError{Path: rel, Reason: reason}
		}
		return final, "", "", nil

	case ActionAppendToFile:
		content, err := op.TextContent()
		if err != nil {
			return nil, "", "", err
		}
		if !exists {
			return content, "", "", nil
		}
		base := e.cleanBase(op.Path, existing)
		if len(base) > 0 && !bytes.HasSuffix(base, []byte("\n")) {
			base = append(base, '\n')
		}
		return append(base, content...), "", "", nil

	case ActionAppendToJSONArray:
		elements, err := op.JSONElements()
		if err != nil {
			return nil, "", "", err
		}
		var arr []json.RawMessage
		if exists {
			base := bytes.TrimSpace(e.cleanBase(op.Path, existing))
			if len(base) > 0 {
				if err := json.Unmarshal(base, &arr); err != nil {
					return nil, "", "", &StateConflictError{Path: rel, Reason: fmt.Sprintf("target is not a JSON array: %v", err)}
				}
			}
		}
		arr = append(arr, elements...)
		final, err := marshalIndented(arr)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to serialize array for %s: %w", rel, err)
		}
		return append(final, '\n'), "", "", nil
	}
	return nil, "", "", fmt.Errorf("%w: unsupported action %q", ErrValidation, op.Action)
}

// writeTarget persists final at target: backup, atomic tagged write,
// read-back verification, receipt bookkeeping.
func (e *Engine) writeTarget(ctx context.Context, op *Operation, target, rel string, existing []byte, exists bool, final []byte, undo *undoLog, r *Receipt) error {
	fp := checksum.Fingerprint(final)
	if e.DryRun {
		r.UpdatedFiles = append(r.UpdatedFiles, rel)
		r.Fingerprints[rel] = fp
		return nil
	}

	if exists {
		backupPath, err := e.Backups.Create(target)
		if err != nil {
			return err
		}
		undo.recordRestore(target, backupPath)
	} else {
		undo.recordCreatedFile(target)
	}

	out := final
	if e.Config.IsTaggedExtension(op.Path) {
		out = checksum.AppendTag(final)
	}
	if err := fsatomic.WriteFileMkdir(target, out, 0644); err != nil {
		return err
	}

	readBack, _, err := e.readTarget(ctx, target)
	if err != nil {
		return err
	}
	if got := checksum.Fingerprint(readBack); got != fp {
		return &IntegrityError{Path: rel, Expected: fp, Actual: got}
	}

	r.UpdatedFiles = append(r.UpdatedFiles, rel)
	r.Fingerprints[rel] = fp
	return nil
}

func (e *Engine) applyCreateDirectory(target, rel string, undo *undoLog, r *Receipt) (Status, string, error) {
	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return StatusNoChange, "directory already exists", nil
	case err == nil:
		return "", "", &StateConflictError{Path: rel, Reason: "path exists and is not a directory"}
	case !errors.Is(err, os.ErrNotExist):
		return "", "", fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if !e.DryRun {
		if err := os.MkdirAll(target, 0755); err != nil {
			return "", "", fmt.Errorf("failed to create directory %s: %w", rel, err)
		}
		undo.recordCreatedDir(target)
	}
	r.UpdatedFiles = append(r.UpdatedFiles, rel)
	return StatusSuccess, "", nil
}

func (e *Engine) applyDeleteFile(target, rel string, exists bool, undo *undoLog, r *Receipt) (Status, string, error) {
	if !exists {
		// Deleting an absent file is the desired end state.
		return StatusNoChange, "file already absent", nil
	}
	if !e.DryRun {
		backupPath, err := e.Backups.Create(target)
		if err != nil {
			return "", "", err
		}
		if err := os.Remove(target); err != nil {
			return "", "", fmt.Errorf("failed to delete %s: %w", rel, err)
		}
		undo.recordRestore(target, backupPath)
	}
	r.UpdatedFiles = append(r.UpdatedFiles, rel)
	r.Fingerprints[rel] = checksum.EmptyFingerprint
	return StatusSuccess, "", nil
}

// readTarget reads the file with bounded retries on transient errors.
// A missing file is not an error here; presence rules are per action.
func (e *Engine) readTarget(ctx context.Context, target string) ([]byte, bool, error) {
	data, err := util.RetryWithResult(ctx, func() ([]byte, error) {
		b, err := os.ReadFile(target)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil, retry.Unrecoverable(err)
		}
		return b, err
	}, util.FileRetryOptions(ctx)...)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return data, true, nil
}

// cleanBase strips integrity tags from existing content before it is used
// as the base of a derived edit, so tags never end up mid-file. Only
// applies to extensions that get tags on write.
func (e *Engine) cleanBase(path string, existing []byte) []byte {
	if e.Config.IsTaggedExtension(path) {
		return checksum.StripTags(existing)
	}
	return existing
}
