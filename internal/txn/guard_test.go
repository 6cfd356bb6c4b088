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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTruncationSizeReduction(t *testing.T) {
	t.Parallel()

	original := bytes.Repeat([]byte("a"), 1000)

	truncated, reason := detectTruncation(original, bytes.Repeat([]byte("a"), 10), nil)
	assert.True(t, truncated, "keeping 1 percent of the file is a truncation")
	assert.Contains(t, reason, "size reduction")

	truncated, _ = detectTruncation(original, bytes.Repeat([]byte("a"), 600), nil)
	assert.False(t, truncated, "keeping 60 percent of the file is a legitimate edit")

	truncated, _ = detectTruncation(original, bytes.Repeat([]byte("a"), 500), nil)
	assert.False(t, truncated, "exactly half is still allowed")
}

func TestDetectTruncationMarkers(t *testing.T) {
	t.Parallel()

	original := bytes.Repeat([]byte("x"), 100)
	cases := []struct {
		name      string
		candidate string
	}{
		{"ellipsis", "first part\n...\nlast part, plus padding to stay over half the original size here"},
		{"bracket elision", "intro [...rest of section omitted] and enough padding text to exceed the size floor"},
		{"english placeholder", "header\nrest of file UNCHANGED\nplus padding padding padding padding padding pad"},
		{"russian placeholder", "шапка\nостальное остается без изменений\nи ещё достаточно текста для объёма"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			truncated, reason := detectTruncation(original, []byte(tc.candidate), nil)
			assert.True(t, truncated)
			assert.Contains(t, reason, "placeholder marker")
		})
	}
}

func TestDetectTruncationExtraMarkers(t *testing.T) {
	t.Parallel()

	original := bytes.Repeat([]byte("x"), 40)
	candidate := []byte("section one\nSNIP HERE\nsection three padding padding padding")

	truncated, _ := detectTruncation(original, candidate, nil)
	assert.False(t, truncated)

	truncated, reason := detectTruncation(original, candidate, []string{"snip here"})
	assert.True(t, truncated)
	assert.Contains(t, reason, "snip here")
}

func TestDetectTruncationEmptyOriginal(t *testing.T) {
	t.Parallel()

	// Anything may replace empty content, even placeholder-looking text.
	truncated, _ := detectTruncation(nil, []byte("..."), nil)
	assert.False(t, truncated)
}
