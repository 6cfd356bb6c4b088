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

// Package checksum computes canonical fingerprints of file content.
//
// A fingerprint is the SHA-256 digest of the "clean" form of a file:
// byte-order mark stripped, CRLF normalized to LF, the trailing integrity
// tag removed, trailing newlines trimmed. Two files that differ only in
// line endings, BOM or embedded tag therefore fingerprint identically.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// EmptyFingerprint is the fingerprint of empty (or absent) content.
const EmptyFingerprint = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

var bomBytes = []byte{0xef, 0xbb, 0xbf}

// trailingTagRe matches a single trailing integrity tag, including the
// newlines that separate it from the content. Applied after CRLF
// normalization, so only LF separators need to be considered.
var trailingTagRe = regexp.MustCompile(`(?i)\n*<!--\s*\[ARK_INTEGRITY_CHECKSUM::sha256:[0-9a-f]{64}\]\s*-->\s*$`)

// Canonicalize normalizes raw bytes into the clean form that fingerprints
// are computed over. Nil input canonicalizes to empty content.
func Canonicalize(raw []byte) []byte {
	if raw == nil {
		return []byte{}
	}
	raw = bytes.TrimPrefix(raw, bomBytes)
	if !utf8.Valid(raw) {
		raw = decodePermissive(raw)
	}
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	raw = trailingTagRe.ReplaceAll(raw, nil)
	raw = bytes.TrimRight(raw, "\n")
	return raw
}

// Fingerprint returns the canonical SHA-256 digest of raw, lowercase hex.
// It never fails: undecodable content is decoded permissively first.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(Canonicalize(raw))
	return hex.EncodeToString(sum[:])
}

// decodePermissive re-encodes arbitrary bytes as UTF-8 via ISO 8859-1,
// which maps every byte to a code point and cannot fail. This keeps
// fingerprinting total over files of unknown or broken encoding.
func decodePermissive(raw []byte) []byte {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO 8859-1 decoding is total; treat a failure as a no-op.
		return raw
	}
	return decoded
}

// DecodeText returns raw as a string, falling back to a permissive
// single-byte decoding when the bytes are not valid UTF-8. A leading BOM
// is dropped.
func DecodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, bomBytes)
	if utf8.Valid(raw) {
		return string(raw)
	}
	return string(decodePermissive(raw))
}
