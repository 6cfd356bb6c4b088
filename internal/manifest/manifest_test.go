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

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arkapply/internal/checksum"
	"arkapply/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	return ws
}

func write(t *testing.T, ws *workspace.Workspace, rel, content string) {
	t.Helper()
	path := filepath.Join(ws.Root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanClassifiesFiles(t *testing.T) {
	t.Parallel()

	ws := newTestWorkspace(t)
	tagged := checksum.AppendTag([]byte("tagged content\n"))
	write(t, ws, "ok.md", string(tagged))
	write(t, ws, "stale.md", string(tagged)+"\nedited after tagging\n")
	write(t, ws, "untagged.md", "never tagged\n")
	write(t, ws, "ignored.go", "package main\n") // not a tagged extension

	report, err := Scan(ws)
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)
	assert.False(t, report.Clean())

	byPath := map[string]TagState{}
	for _, e := range report.Entries {
		byPath[e.Path] = e.State
	}
	assert.Equal(t, TagOK, byPath["ok.md"])
	assert.Equal(t, TagStale, byPath["stale.md"])
	assert.Equal(t, TagMissing, byPath["untagged.md"])
}

func TestScanSkipsControlDirAndGitignored(t *testing.T) {
	t.Parallel()

	ws := newTestWorkspace(t)
	write(t, ws, "keep.md", "kept\n")
	write(t, ws, ".gitignore", "build/\n")
	write(t, ws, "build/out.md", "transient\n")

	// Files under the control directory are never scanned.
	require.NoError(t, os.MkdirAll(ws.BackupDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.ControlDir(), "note.md"), []byte("internal\n"), 0644))

	report, err := Scan(ws)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "keep.md", report.Entries[0].Path)
}

func TestRetag(t *testing.T) {
	t.Parallel()

	ws := newTestWorkspace(t)
	write(t, ws, "a.md", "document a\n")
	write(t, ws, "b.md", string(checksum.AppendTag([]byte("document b\n"))))

	updated, err := Retag(ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, updated, "already-current tags are left alone")

	report, err := Scan(ws)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// Retag is idempotent.
	updated, err = Retag(ws)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	ws := newTestWorkspace(t)
	write(t, ws, "a.md", string(checksum.AppendTag([]byte("content\n"))))

	report, err := Scan(ws)
	require.NoError(t, err)
	require.NoError(t, Save(ws, report))

	loaded, err := Load(ws)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, report.Entries, loaded.Entries)
}

func TestMissingReportsDeletedFiles(t *testing.T) {
	t.Parallel()

	ws := newTestWorkspace(t)
	write(t, ws, "keep.md", string(checksum.AppendTag([]byte("kept\n"))))
	write(t, ws, "gone.md", string(checksum.AppendTag([]byte("doomed\n"))))

	report, err := Scan(ws)
	require.NoError(t, err)
	require.NoError(t, Save(ws, report))

	require.NoError(t, os.Remove(filepath.Join(ws.Root, "gone.md")))

	fresh, err := Scan(ws)
	require.NoError(t, err)
	saved, err := Load(ws)
	require.NoError(t, err)

	assert.Equal(t, []string{"gone.md"}, Missing(saved, fresh))
	assert.Empty(t, Missing(nil, fresh), "no saved manifest means nothing to miss")
}

func TestLoadMissingManifest(t *testing.T) {
	t.Parallel()

	loaded, err := Load(newTestWorkspace(t))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
