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
	"fmt"
	"strings"

	"arkapply/internal/checksum"
)

// defaultMarkers are placeholder phrases that indicate a caller sent an
// elided summary instead of full file content. Matching is case-insensitive
// substring search over the candidate text.
var defaultMarkers = []string{
	"...",
	"[...",
	"]...",
	"остается без изменений",
	"без изменений",
	"no change",
	"unchanged",
}

// detectTruncation checks whether candidate content looks like a truncated
// or placeholder-laden replacement of original. Applies only to
// content-replacing actions on files that had prior content.
func detectTruncation(original, candidate []byte, extraMarkers []string) (bool, string) {
	if len(original) == 0 {
		return false, ""
	}
	if len(candidate)*2 < len(original) {
		return true, fmt.Sprintf("size reduction: original=%d bytes, new=%d bytes (%.0f%% kept)",
			len(original), len(candidate), float64(len(candidate))/float64(len(original))*100)
	}
	text := strings.ToLower(checksum.DecodeText(candidate))
	for _, marker := range defaultMarkers {
		if strings.Contains(text, strings.ToLower(marker)) {
			return true, fmt.Sprintf("placeholder marker found: %q", marker)
		}
	}
	for _, marker := range extraMarkers {
		if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
			return true, fmt.Sprintf("placeholder marker found: %q", marker)
		}
	}
	return false, ""
}
