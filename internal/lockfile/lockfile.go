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

// Package lockfile provides cross-process mutual exclusion via a marker file
// recording the owner pid and acquisition time. Unlike an in-process mutex,
// the marker survives crashes, so acquisition includes liveness and
// staleness checks that let a later run reclaim an orphaned lock.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"arkapply/internal/util"
)

// ErrHeld reports that another live process holds the lock.
var ErrHeld = errors.New("lock held by another live process")

// DefaultStaleAfter is the marker age beyond which a lock is reclaimable
// regardless of owner liveness.
const DefaultStaleAfter = 2 * time.Hour

const guardRetryDelay = 100 * time.Millisecond

// Lock is a marker-file lock. The marker itself is the cross-process token;
// a side flock on <marker>.flock serializes the stale-reclaim window so two
// processes cannot both observe a stale marker and both "win".
type Lock struct {
	path       string
	staleAfter time.Duration
	guard      *flock.Flock
	acquired   bool

	now func() time.Time // overridable for tests
}

// New returns a Lock for the marker at path. staleAfter <= 0 selects
// DefaultStaleAfter.
func New(path string, staleAfter time.Duration) *Lock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Lock{
		path:       path,
		staleAfter: staleAfter,
		guard:      flock.New(path + ".flock"),
		now:        time.Now,
	}
}

// Path returns the marker file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock, failing with ErrHeld when a live, non-stale owner
// exists. A stale or orphaned marker is removed and acquisition retried
// once. The ctx deadline bounds the wait for the guard flock.
func (l *Lock) Acquire(ctx context.Context) error {
	locked, err := l.guard.TryLockContext(ctx, guardRetryDelay)
	if err != nil {
		return fmt.Errorf("waiting for lock guard: %w: %w", ErrHeld, err)
	}
	if !locked {
		return fmt.Errorf("lock guard busy: %w", ErrHeld)
	}
	defer l.guard.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		err := l.createMarker()
		if err == nil {
			l.acquired = true
			log.WithFields(log.Fields{"lock": l.path, "pid": os.Getpid()}).Debug("lock acquired")
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock marker: %w", err)
		}

		pid, at, readErr := l.readMarker()
		if readErr != nil {
			// Unreadable marker counts as stale; it carries no proof of a
			// live owner.
			log.WithError(readErr).WithField("lock", l.path).Warn("removing unreadable lock marker")
		} else {
			age := l.now().Sub(at)
			if age <= l.staleAfter && util.IsProcessRunning(pid) {
				return fmt.Errorf("lock %s owned by pid %d (age %s): %w", l.path, pid, age.Round(time.Second), ErrHeld)
			}
			log.WithFields(log.Fields{"lock": l.path, "pid": pid, "age": age.Round(time.Second)}).
				Warn("reclaiming stale lock marker")
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock marker: %w", err)
		}
	}
	return fmt.Errorf("lock marker recreated during reclaim: %w", ErrHeld)
}

// Release removes the marker only when its recorded owner is the current
// process. A marker owned by a newer process is left in place.
func (l *Lock) Release() error {
	if !l.acquired {
		return nil
	}
	l.acquired = false

	locked, err := l.guard.TryLock()
	if err == nil && locked {
		defer l.guard.Unlock()
	}

	pid, _, err := l.readMarker()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock marker on release: %w", err)
	}
	if pid != os.Getpid() {
		log.WithFields(log.Fields{"lock": l.path, "owner": pid}).
			Warn("lock marker owned by another process, not removing")
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock marker: %w", err)
	}
	log.WithField("lock", l.path).Debug("lock released")
	return nil
}

// createMarker writes "<pid> <RFC3339 time>" with O_EXCL so a concurrent
// creation race loses cleanly.
func (l *Lock) createMarker() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d %s\n", os.Getpid(), l.now().UTC().Format(time.RFC3339))
	cerr := f.Close()
	if werr != nil {
		os.Remove(l.path)
		return werr
	}
	if cerr != nil {
		os.Remove(l.path)
		return cerr
	}
	return nil
}

// readMarker parses the owner pid and acquisition time. When the timestamp
// is missing or malformed the file mtime stands in for it.
func (l *Lock) readMarker() (int, time.Time, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, time.Time{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, time.Time{}, fmt.Errorf("empty lock marker %s", l.path)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed pid in lock marker %s: %w", l.path, err)
	}
	if len(fields) > 1 {
		if at, err := time.Parse(time.RFC3339, fields[1]); err == nil {
			return pid, at, nil
		}
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return pid, time.Time{}, nil
	}
	return pid, info.ModTime(), nil
}
