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

// Package backup preserves pre-mutation file content as timestamped raw-byte
// copies with an N-most-recent rotation policy. Copies are never normalized,
// so a restore reproduces the original bytes exactly.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultRetain is the number of backups kept per file name.
const DefaultRetain = 5

// timestampLayout is sortable UTC, e.g. "20260831T142501Z".
const timestampLayout = "20060102T150405Z"

// Manager creates and rotates backups inside a single backup directory.
type Manager struct {
	Dir    string
	Retain int

	now func() time.Time // overridable for tests
}

// NewManager returns a Manager for dir keeping retain backups per file.
// retain <= 0 selects DefaultRetain.
func NewManager(dir string, retain int) *Manager {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Manager{Dir: dir, Retain: retain, now: time.Now}
}

// Create copies the file at path into the backup directory and rotates older
// backups of the same file name. Returns the backup path, or "" with a nil
// error when the target does not exist (nothing to preserve).
func (m *Manager) Create(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s for backup: %w", path, err)
	}
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	base := filepath.Base(path)
	ts := m.now().UTC().Format(timestampLayout)

	// O_EXCL create; on a same-second collision (two mutations of one file in
	// a single run) disambiguate with a numeric infix.
	var backupPath string
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s.%s.bak", base, ts)
		if n > 0 {
			name = fmt.Sprintf("%s.%s.%d.bak", base, ts, n)
		}
		backupPath = filepath.Join(m.Dir, name)
		f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to create backup file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write backup file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close backup file: %w", err)
		}
		break
	}

	if err := m.rotate(base); err != nil {
		// Rotation failure must not invalidate the fresh backup.
		log.WithError(err).WithField("file", base).Warn("backup rotation failed")
	}
	return backupPath, nil
}

// List returns the backup paths for a file name, oldest first.
func (m *Manager) List(base string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.Dir, base+".*.bak"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		ti, tj := modTime(matches[i]), modTime(matches[j])
		if ti.Equal(tj) {
			// Timestamped names sort chronologically as a tiebreak.
			return matches[i] < matches[j]
		}
		return ti.Before(tj)
	})
	return matches, nil
}

// rotate deletes the oldest backups of base beyond the retention count.
func (m *Manager) rotate(base string) error {
	backups, err := m.List(base)
	if err != nil {
		return err
	}
	for len(backups) > m.Retain {
		oldest := backups[0]
		backups = backups[1:]
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", oldest, err)
		}
		log.WithField("backup", oldest).Debug("rotated out old backup")
	}
	return nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
