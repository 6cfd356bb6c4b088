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
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"arkapply/internal/checksum"
)

// Substring and regex replacement over file content. Matching happens on a
// normalized view of the text (NFC, exotic spaces folded, LF line endings,
// trailing line whitespace stripped) so that visually identical patterns
// match despite unicode noise; the original EOL style and BOM are restored
// on output.

var (
	bomPrefix = []byte{0xef, 0xbb, 0xbf}

	// exoticSpaceRe folds NBSP, zero-width space and narrow NBSP to plain
	// spaces; they are indistinguishable in most editors.
	exoticSpaceRe = regexp.MustCompile("[\u00a0\u200b\u202f]")

	// trailingWSRe strips trailing spaces/tabs per line.
	trailingWSRe = regexp.MustCompile(`(?m)[ \t]+$`)

	// wsRunRe matches whitespace runs, used to build the loose pattern for
	// ignore_whitespace mode.
	wsRunRe = regexp.MustCompile(`[ \t\n]+`)
)

// normalizeText canonicalizes text for matching.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = exoticSpaceRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingWSRe.ReplaceAllString(s, "")
	return s
}

// replaceInFile applies spec to original and returns the new bytes and the
// number of substitutions (0 or 1, only the first match is replaced).
// Zero matches returns the original bytes untouched.
func replaceInFile(original []byte, spec *ReplaceSpec) ([]byte, int, error) {
	if spec.Pattern == "" {
		return original, 0, nil
	}

	hadBOM := bytes.HasPrefix(original, bomPrefix)
	text := checksum.DecodeText(original)
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	normText := normalizeText(text)
	normPattern := normalizeText(spec.Pattern)
	normReplacement := normalizeText(spec.Replacement)

	var newText string
	var count int
	switch {
	case spec.Regex:
		rx, err := regexp.Compile("(?s)" + normPattern)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid regex pattern: %v", ErrValidation, err)
		}
		newText, count = replaceFirstRegex(rx, normText, normReplacement)
	case spec.IgnoreWhitespace:
		// Literal pattern with whitespace runs matching loosely.
		loose := wsRunRe.ReplaceAllString(regexp.QuoteMeta(normPattern), `\s+`)
		rx, err := regexp.Compile("(?s)" + loose)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to build loose pattern: %v", ErrValidation, err)
		}
		newText, count = replaceFirstLiteral(rx, normText, normReplacement)
	default:
		if !strings.Contains(normText, normPattern) {
			return original, 0, nil
		}
		newText = strings.Replace(normText, normPattern, normReplacement, 1)
		count = 1
	}
	if count == 0 {
		return original, 0, nil
	}

	if eol == "\r\n" {
		newText = strings.ReplaceAll(newText, "\n", "\r\n")
	}
	out := []byte(newText)
	if hadBOM {
		out = append(append([]byte{}, bomPrefix...), out...)
	}
	return out, count, nil
}

// replaceFirstRegex substitutes the first match, expanding $1-style
// references in the replacement template.
func replaceFirstRegex(rx *regexp.Regexp, text, replacement string) (string, int) {
	loc := rx.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, 0
	}
	expanded := rx.ExpandString(nil, replacement, text, loc)
	return text[:loc[0]] + string(expanded) + text[loc[1]:], 1
}

// replaceFirstLiteral substitutes the first match with the replacement
// taken verbatim (no template expansion).
func replaceFirstLiteral(rx *regexp.Regexp, text, replacement string) (string, int) {
	loc := rx.FindStringIndex(text)
	if loc == nil {
		return text, 0
	}
	return text[:loc[0]] + replacement + text[loc[1]:], 1
}
