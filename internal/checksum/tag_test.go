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

package checksum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTag(t *testing.T) {
	t.Parallel()

	content := []byte("# Doc\n\nbody\n")
	tagged := AppendTag(content)

	fp, ok := ExtractTag(tagged)
	require.True(t, ok)
	assert.Equal(t, Fingerprint(content), fp)

	// Tagging must be idempotent: re-tagging yields identical bytes.
	assert.Equal(t, tagged, AppendTag(tagged))
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	t.Run("no tag", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []byte("plain"), StripTags([]byte("plain")))
	})

	t.Run("trailing tag", func(t *testing.T) {
		t.Parallel()
		tagged := AppendTag([]byte("body\n"))
		assert.Equal(t, []byte("body"), StripTags(tagged))
	})

	t.Run("multiple stale tags", func(t *testing.T) {
		t.Parallel()
		tag := Tag(strings.Repeat("0", 64))
		raw := []byte("head\n" + tag + "\nmiddle\n" + tag + "\n")
		clean := string(StripTags(raw))
		assert.NotContains(t, clean, "ARK_INTEGRITY_CHECKSUM")
		assert.Contains(t, clean, "head")
		assert.Contains(t, clean, "middle")
	})
}

func TestExtractTag(t *testing.T) {
	t.Parallel()

	_, ok := ExtractTag([]byte("no tag here"))
	assert.False(t, ok)

	fp := strings.Repeat("ab", 32)
	raw := []byte("content\n" + Tag(fp) + "\n")
	got, ok := ExtractTag(raw)
	require.True(t, ok)
	assert.Equal(t, fp, got)
}
