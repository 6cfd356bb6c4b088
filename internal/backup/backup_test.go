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

package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("absent target yields no backup", func(t *testing.T) {
		t.Parallel()
		m := NewManager(t.TempDir(), 0)
		ref, err := m.Create(filepath.Join(t.TempDir(), "missing.txt"))
		require.NoError(t, err)
		assert.Empty(t, ref)
	})

	t.Run("copies raw bytes", func(t *testing.T) {
		t.Parallel()
		m := NewManager(t.TempDir(), 0)
		src := filepath.Join(t.TempDir(), "file.txt")
		// CRLF and trailing whitespace must survive the copy untouched.
		raw := []byte("line one\r\nline two\r\n\n\n")
		require.NoError(t, os.WriteFile(src, raw, 0644))

		ref, err := m.Create(src)
		require.NoError(t, err)
		require.NotEmpty(t, ref)

		copied, err := os.ReadFile(ref)
		require.NoError(t, err)
		assert.Equal(t, raw, copied)
	})

	t.Run("same-second backups get distinct names", func(t *testing.T) {
		t.Parallel()
		m := NewManager(t.TempDir(), 0)
		m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

		src := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(src, []byte("v1"), 0644))
		first, err := m.Create(src)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(src, []byte("v2"), 0644))
		second, err := m.Create(src)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		data, err := os.ReadFile(first)
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
	})
}

func TestRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(dir, 3)
	src := filepath.Join(t.TempDir(), "file.txt")

	fake := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fake }

	for i := 0; i < 6; i++ {
		require.NoError(t, os.WriteFile(src, []byte{byte('a' + i)}, 0644))
		_, err := m.Create(src)
		require.NoError(t, err)
		fake = fake.Add(time.Second)
	}

	backups, err := m.List("file.txt")
	require.NoError(t, err)
	assert.Len(t, backups, 3)

	// The newest content must be among the survivors.
	newest, err := os.ReadFile(backups[len(backups)-1])
	require.NoError(t, err)
	assert.Equal(t, "f", string(newest))
}

func TestListOnlyMatchesOwnBase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(dir, 0)
	srcDir := t.TempDir()

	a := filepath.Join(srcDir, "a.txt")
	b := filepath.Join(srcDir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	_, err := m.Create(a)
	require.NoError(t, err)
	_, err = m.Create(b)
	require.NoError(t, err)

	got, err := m.List("a.txt")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
