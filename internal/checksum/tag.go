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
	"fmt"
	"regexp"
	"strings"
)

// The integrity tag is a trailing comment-style marker embedding the clean
// fingerprint of the surrounding content, so readers can verify drift
// without recomputation tooling.

// tagFormat renders an integrity tag for a fingerprint.
const tagFormat = "<!-- [ARK_INTEGRITY_CHECKSUM::sha256:%s] -->"

// anyTagRe matches an integrity tag anywhere in the text, with surrounding
// whitespace, used when scrubbing stale tags before re-tagging.
var anyTagRe = regexp.MustCompile(`(?i)\s*<!--\s*\[ARK_INTEGRITY_CHECKSUM::sha256:[0-9a-f]{64}\]\s*-->\s*`)

// extractTagRe captures the fingerprint out of a tag.
var extractTagRe = regexp.MustCompile(`(?i)<!--\s*\[ARK_INTEGRITY_CHECKSUM::sha256:([0-9a-f]{64})\]\s*-->`)

// Tag renders the integrity tag for the given fingerprint.
func Tag(fingerprint string) string {
	return fmt.Sprintf(tagFormat, fingerprint)
}

// StripTags removes every embedded integrity tag from raw and trims
// surrounding whitespace. Stale tags may appear mid-file after manual
// edits, so all occurrences are scrubbed, not only the trailing one.
func StripTags(raw []byte) []byte {
	text := DecodeText(raw)
	clean := anyTagRe.ReplaceAllString(text, "")
	return []byte(strings.TrimSpace(clean))
}

// AppendTag scrubs stale tags from raw and appends a freshly computed
// integrity tag for the clean content.
func AppendTag(raw []byte) []byte {
	clean := StripTags(raw)
	tag := Tag(Fingerprint(clean))
	out := make([]byte, 0, len(clean)+len(tag)+2)
	out = append(out, clean...)
	out = append(out, '\n')
	out = append(out, tag...)
	out = append(out, '\n')
	return out
}

// ExtractTag returns the fingerprint recorded in the last embedded tag of
// raw, if any.
func ExtractTag(raw []byte) (string, bool) {
	matches := extractTagRe.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", false
	}
	return strings.ToLower(string(matches[len(matches)-1][1])), true
}
