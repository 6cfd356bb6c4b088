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
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"arkapply/internal/fsatomic"
)

type undoKind int

const (
	undoRestore undoKind = iota
	undoDeleteFile
	undoRemoveDir
)

// undoEntry is one recorded side effect, with what it takes to reverse it.
type undoEntry struct {
	kind   undoKind
	path   string // absolute target path
	backup string // backup file for undoRestore
}

// undoLog accumulates side effects in execution order so a failed run can
// be replayed backwards.
type undoLog struct {
	entries []undoEntry
}

func (u *undoLog) recordRestore(path, backup string) {
	u.entries = append(u.entries, undoEntry{kind: undoRestore, path: path, backup: backup})
}

func (u *undoLog) recordCreatedFile(path string) {
	u.entries = append(u.entries, undoEntry{kind: undoDeleteFile, path: path})
}

func (u *undoLog) recordCreatedDir(path string) {
	u.entries = append(u.entries, undoEntry{kind: undoRemoveDir, path: path})
}

// rollback replays the log in reverse. It is best-effort: every entry is
// attempted even if earlier ones fail, and all failures are returned so
// the receipt can report what could not be undone.
func (u *undoLog) rollback() []error {
	var errs []error
	for i := len(u.entries) - 1; i >= 0; i-- {
		e := u.entries[i]
		var err error
		switch e.kind {
		case undoRestore:
			err = restoreBackup(e.path, e.backup)
		case undoDeleteFile:
			if rmErr := os.Remove(e.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = rmErr
			}
		case undoRemoveDir:
			// Only removes an empty directory; a directory that gained
			// content after creation is left alone.
			if rmErr := os.Remove(e.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = rmErr
			}
		}
		if err != nil {
			log.WithError(err).WithField("path", e.path).Error("Rollback step failed")
			errs = append(errs, fmt.Errorf("rollback of %s: %w", e.path, err))
		}
	}
	return errs
}

// restoreBackup puts a backup copy back at path. The backup file itself is
// preserved; restore copies rather than renames so the audit trail under
// the backup directory stays intact.
func restoreBackup(path, backup string) error {
	data, err := os.ReadFile(backup)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", backup, err)
	}
	return fsatomic.WriteFile(path, data, 0644)
}
