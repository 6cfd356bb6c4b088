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

package common

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"/foo/bar/", "foo/bar"},
		{"foo//bar", "foo/bar"},
		{"./foo", "foo"},
		{".", ""},
		{"", ""},
		{"foo\\bar", "foo/bar"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizePath(tt.input), "input: %q", tt.input)
	}
}

func TestSafeJoin(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	t.Run("resolves inside root", func(t *testing.T) {
		t.Parallel()
		full, err := SafeJoin(root, "docs/readme.md")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "docs", "readme.md"), full)
	})

	t.Run("allows root itself", func(t *testing.T) {
		t.Parallel()
		full, err := SafeJoin(root, ".")
		require.NoError(t, err)
		assert.Equal(t, root, full)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		t.Parallel()
		_, err := SafeJoin(root, "../outside.txt")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPath))
	})

	t.Run("rejects nested traversal", func(t *testing.T) {
		t.Parallel()
		_, err := SafeJoin(root, "docs/../../escape")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPath))
	})

	t.Run("rejects sibling prefix", func(t *testing.T) {
		t.Parallel()
		// A sibling dir sharing the root's name prefix must not pass the guard.
		_, err := SafeJoin(root, "../"+filepath.Base(root)+"x/file")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPath))
	})
}
