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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, EmptyFingerprint, Fingerprint(nil))
	assert.Equal(t, EmptyFingerprint, Fingerprint([]byte{}))
	assert.Equal(t, EmptyFingerprint, Fingerprint([]byte("\n\n\n")))
}

func TestFingerprintStability(t *testing.T) {
	t.Parallel()

	base := []byte("# Title\n\nSome content here.\n")
	want := Fingerprint(base)

	t.Run("crlf variant", func(t *testing.T) {
		t.Parallel()
		crlf := []byte("# Title\r\n\r\nSome content here.\r\n")
		assert.Equal(t, want, Fingerprint(crlf))
	})

	t.Run("bom variant", func(t *testing.T) {
		t.Parallel()
		bom := append([]byte{0xef, 0xbb, 0xbf}, base...)
		assert.Equal(t, want, Fingerprint(bom))
	})

	t.Run("tagged variant", func(t *testing.T) {
		t.Parallel()
		tagged := AppendTag(base)
		assert.Equal(t, want, Fingerprint(tagged))
	})

	t.Run("tagged crlf variant", func(t *testing.T) {
		t.Parallel()
		tagged := AppendTag(base)
		crlf := []byte(strings.ReplaceAll(string(tagged), "\n", "\r\n"))
		assert.Equal(t, want, Fingerprint(crlf))
	})

	t.Run("trailing blank lines", func(t *testing.T) {
		t.Parallel()
		padded := append(append([]byte{}, base...), []byte("\n\n\n")...)
		assert.Equal(t, want, Fingerprint(padded))
	})
}

func TestFingerprintMatchesPlainSHA256(t *testing.T) {
	t.Parallel()

	// Content with no BOM, no CRLF, no tag and no trailing newline must hash
	// to its plain SHA-256.
	content := []byte("hello world")
	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), Fingerprint(content))
}

func TestFingerprintCaseInsensitiveTag(t *testing.T) {
	t.Parallel()

	base := []byte("body\n")
	// Tag keyword matching is case-insensitive, including the hex digest.
	lower := []byte("body\n<!-- [ARK_INTEGRITY_CHECKSUM::sha256:" + strings.Repeat("a", 64) + "] -->\n")
	upper := []byte("body\n<!-- [ark_integrity_checksum::SHA256:" + strings.Repeat("A", 64) + "] -->\n")
	assert.Equal(t, Fingerprint(base), Fingerprint(lower))
	assert.Equal(t, Fingerprint(base), Fingerprint(upper))
}

func TestFingerprintNeverFailsOnBinary(t *testing.T) {
	t.Parallel()

	// Invalid UTF-8 content must still produce a stable fingerprint.
	raw := []byte{0xff, 0xfe, 0x00, 0x81, 0xad}
	fp1 := Fingerprint(raw)
	fp2 := Fingerprint(raw)
	require.Len(t, fp1, 64)
	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, EmptyFingerprint, fp1)
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	t.Run("valid utf8", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "héllo", DecodeText([]byte("héllo")))
	})

	t.Run("strips bom", func(t *testing.T) {
		t.Parallel()
		raw := append([]byte{0xef, 0xbb, 0xbf}, []byte("x")...)
		assert.Equal(t, "x", DecodeText(raw))
	})

	t.Run("latin1 fallback", func(t *testing.T) {
		t.Parallel()
		// 0xe9 is 'é' in ISO 8859-1 and invalid as standalone UTF-8.
		assert.Equal(t, "café", DecodeText([]byte{'c', 'a', 'f', 0xe9}))
	})
}
