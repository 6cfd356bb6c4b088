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

// Package manifest scans the workspace for files that carry integrity tags
// and reports drift: content whose embedded tag no longer matches its
// clean fingerprint. The scan result can be persisted as a manifest file
// for later comparison.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"arkapply/internal/checksum"
	"arkapply/internal/fsatomic"
	"arkapply/internal/workspace"
)

// TagState classifies one scanned file.
type TagState string

const (
	// TagOK means the embedded tag matches the clean fingerprint.
	TagOK TagState = "OK"
	// TagStale means the file was edited after tagging.
	TagStale TagState = "STALE"
	// TagMissing means the file carries no tag yet.
	TagMissing TagState = "MISSING"
)

// Entry is one scanned file.
type Entry struct {
	Path        string   `json:"path"` // slash-separated, workspace-relative
	Fingerprint string   `json:"fingerprint"`
	Tag         string   `json:"tag,omitempty"`
	State       TagState `json:"state"`
}

// Report is a full scan of the workspace's tagged files.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Clean reports whether every scanned file is in the OK state.
func (r *Report) Clean() bool {
	for _, e := range r.Entries {
		if e.State != TagOK {
			return false
		}
	}
	return true
}

// Scan walks the workspace and verifies every file with a tagged
// extension. Gitignored paths, the control directory and .git are
// skipped.
func Scan(ws *workspace.Workspace) (*Report, error) {
	report := &Report{GeneratedAt: time.Now().UTC(), Entries: []Entry{}}
	err := walkTagged(ws, func(rel string, data []byte) error {
		entry := Entry{Path: rel, Fingerprint: checksum.Fingerprint(data)}
		tag, ok := checksum.ExtractTag(data)
		switch {
		case !ok:
			entry.State = TagMissing
		case tag == entry.Fingerprint:
			entry.Tag = tag
			entry.State = TagOK
		default:
			entry.Tag = tag
			entry.State = TagStale
		}
		report.Entries = append(report.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(report.Entries, func(i, j int) bool { return report.Entries[i].Path < report.Entries[j].Path })
	return report, nil
}

// Retag rewrites the integrity tag on every tagged-extension file whose
// tag is missing or stale, and returns the paths it touched. Content is
// otherwise preserved byte for byte up to tag placement.
func Retag(ws *workspace.Workspace) ([]string, error) {
	var updated []string
	err := walkTagged(ws, func(rel string, data []byte) error {
		tag, ok := checksum.ExtractTag(data)
		if ok && tag == checksum.Fingerprint(data) {
			return nil
		}
		target := filepath.Join(ws.Root, filepath.FromSlash(rel))
		if err := fsatomic.WriteFile(target, checksum.AppendTag(data), 0644); err != nil {
			return fmt.Errorf("failed to retag %s: %w", rel, err)
		}
		log.WithField("path", rel).Debug("retagged file")
		updated = append(updated, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(updated)
	return updated, nil
}

// walkTagged visits every non-ignored file with a tagged extension.
func walkTagged(ws *workspace.Workspace, fn func(rel string, data []byte) error) error {
	matcher := newIgnoreMatcher(ws.Root)
	ctlRel, err := filepath.Rel(ws.Root, ws.ControlDir())
	if err != nil {
		return err
	}
	ctlRel = filepath.ToSlash(ctlRel)

	return filepath.WalkDir(ws.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(ws.Root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rel == ctlRel || d.Name() == ".git" || matcher.isIgnored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ws.Config.IsTaggedExtension(rel) || matcher.isIgnored(rel, false) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", rel, readErr)
		}
		return fn(rel, data)
	})
}

// Missing returns the paths a previously saved report records that are
// absent from the fresh scan: files deleted (or renamed away) since the
// manifest was written. A nil saved report yields nothing.
func Missing(saved, fresh *Report) []string {
	if saved == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(fresh.Entries))
	for _, e := range fresh.Entries {
		seen[e.Path] = struct{}{}
	}
	var missing []string
	for _, e := range saved.Entries {
		if _, ok := seen[e.Path]; !ok {
			missing = append(missing, e.Path)
		}
	}
	sort.Strings(missing)
	return missing
}

// Save writes the report to the workspace manifest path.
func Save(ws *workspace.Workspace, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	return fsatomic.WriteFileMkdir(ws.ManifestPath(), append(data, '\n'), 0644)
}

// Load reads a previously saved report. A missing manifest returns nil.
func Load(ws *workspace.Workspace) (*Report, error) {
	data, err := os.ReadFile(ws.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &report, nil
}
