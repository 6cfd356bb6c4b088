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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceSubstring(t *testing.T) {
	t.Parallel()

	out, count, err := replaceInFile([]byte("say hello to the hello world\n"),
		&ReplaceSpec{Pattern: "hello", Replacement: "goodbye"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the first occurrence is replaced")
	assert.Equal(t, "say goodbye to the hello world\n", string(out))
}

func TestReplaceZeroMatches(t *testing.T) {
	t.Parallel()

	original := []byte("nothing to see\n")
	out, count, err := replaceInFile(original, &ReplaceSpec{Pattern: "absent", Replacement: "x"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, original, out)
}

func TestReplaceRegex(t *testing.T) {
	t.Parallel()

	out, count, err := replaceInFile([]byte("release v12 shipped, v13 pending\n"),
		&ReplaceSpec{Pattern: `v(\d+)`, Replacement: "version $1", Regex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "release version 12 shipped, v13 pending\n", string(out))
}

func TestReplaceRegexDotMatchesNewline(t *testing.T) {
	t.Parallel()

	out, count, err := replaceInFile([]byte("begin\nold body\nend\n"),
		&ReplaceSpec{Pattern: `begin.*end`, Replacement: "begin\nnew body\nend", Regex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "begin\nnew body\nend\n", string(out))
}

func TestReplaceInvalidRegex(t *testing.T) {
	t.Parallel()

	_, _, err := replaceInFile([]byte("x"), &ReplaceSpec{Pattern: `([`, Regex: true})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReplaceIgnoreWhitespace(t *testing.T) {
	t.Parallel()

	original := []byte("func  main(  ) {\n\treturn\n}\n")
	out, count, err := replaceInFile(original,
		&ReplaceSpec{Pattern: "func main( ) { return }", Replacement: "func main() {}", IgnoreWhitespace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Contains(t, string(out), "func main() {}")
}

func TestReplacePreservesCRLF(t *testing.T) {
	t.Parallel()

	out, count, err := replaceInFile([]byte("one\r\nhello\r\nthree\r\n"),
		&ReplaceSpec{Pattern: "hello", Replacement: "two"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "one\r\ntwo\r\nthree\r\n", string(out))
}

func TestReplacePreservesBOM(t *testing.T) {
	t.Parallel()

	original := append([]byte{0xef, 0xbb, 0xbf}, []byte("hello world\n")...)
	out, count, err := replaceInFile(original, &ReplaceSpec{Pattern: "world", Replacement: "there"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, append([]byte{0xef, 0xbb, 0xbf}, []byte("hello there\n")...), out)
}

func TestReplaceFoldsExoticSpaces(t *testing.T) {
	t.Parallel()

	// The file uses a non-breaking space; the pattern uses a plain one.
	out, count, err := replaceInFile([]byte("hello world\n"),
		&ReplaceSpec{Pattern: "hello world", Replacement: "done"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "done\n", string(out))
}

func TestReplaceMatchesDespiteTrailingWhitespace(t *testing.T) {
	t.Parallel()

	out, count, err := replaceInFile([]byte("line one   \nline two\n"),
		&ReplaceSpec{Pattern: "line one\nline two", Replacement: "merged"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "merged\n", string(out))
}
