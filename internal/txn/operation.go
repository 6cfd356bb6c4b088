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
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Action is the closed vocabulary of modification operations.
type Action string

const (
	ActionCreateFile        Action = "CREATE_FILE"
	ActionModifyFile        Action = "MODIFY_FILE"
	ActionDeleteFile        Action = "DELETE_FILE"
	ActionReplaceInFile     Action = "REPLACE_IN_FILE"
	ActionAppendToFile      Action = "APPEND_TO_FILE"
	ActionAppendToJSONArray Action = "APPEND_TO_JSON_ARRAY"
	ActionCreateDirectory   Action = "CREATE_DIRECTORY"
)

// Actions lists the supported action kinds.
var Actions = []Action{
	ActionCreateFile, ActionModifyFile, ActionDeleteFile, ActionReplaceInFile,
	ActionAppendToFile, ActionAppendToJSONArray, ActionCreateDirectory,
}

// Operation is one declarative modification. The content payload is a
// tagged union keyed by Action: text content for file writes, a replace
// spec for REPLACE_IN_FILE, JSON elements for APPEND_TO_JSON_ARRAY, and
// nothing for DELETE_FILE / CREATE_DIRECTORY. The typed accessors below
// decode the variant that the action requires.
type Operation struct {
	Action  Action          `json:"action"`
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content,omitempty"`

	// ExpectedBefore asserts the clean fingerprint the caller last observed.
	// When set, the engine fails with a state conflict if the file has
	// diverged. This is optimistic concurrency control without a held lock.
	ExpectedBefore string `json:"expected_checksum_before,omitempty"`
}

// ReplaceSpec is the REPLACE_IN_FILE payload.
type ReplaceSpec struct {
	Pattern          string `json:"pattern"`
	Replacement      string `json:"replacement"`
	Regex            bool   `json:"regex,omitempty"`
	IgnoreWhitespace bool   `json:"ignore_whitespace,omitempty"`
}

// hasContent reports whether a non-null content payload was supplied.
func (op *Operation) hasContent() bool {
	return len(op.Content) > 0 && !bytes.Equal(bytes.TrimSpace(op.Content), []byte("null"))
}

// TextContent decodes the payload for CREATE_FILE, MODIFY_FILE and
// APPEND_TO_FILE. A JSON string is taken verbatim; an object or array is
// pretty-printed with two-space indent, matching the serialization used
// for APPEND_TO_JSON_ARRAY.
func (op *Operation) TextContent() ([]byte, error) {
	if !op.hasContent() {
		return nil, fmt.Errorf("%w: content is required for %s on %q", ErrValidation, op.Action, op.Path)
	}
	var s string
	if err := json.Unmarshal(op.Content, &s); err == nil {
		return []byte(s), nil
	}
	var v any
	if err := json.Unmarshal(op.Content, &v); err != nil {
		return nil, fmt.Errorf("%w: malformed content for %s on %q: %v", ErrValidation, op.Action, op.Path, err)
	}
	switch v.(type) {
	case map[string]any, []any:
		return marshalIndented(v)
	default:
		return []byte(fmt.Sprint(v)), nil
	}
}

// Replace decodes the payload for REPLACE_IN_FILE. A bare JSON string is
// shorthand for deleting the first occurrence of that pattern.
func (op *Operation) Replace() (*ReplaceSpec, error) {
	if !op.hasContent() {
		return nil, fmt.Errorf("%w: content is required for %s on %q", ErrValidation, op.Action, op.Path)
	}
	var pattern string
	if err := json.Unmarshal(op.Content, &pattern); err == nil {
		return &ReplaceSpec{Pattern: pattern}, nil
	}
	var spec ReplaceSpec
	if err := json.Unmarshal(op.Content, &spec); err != nil {
		return nil, fmt.Errorf("%w: malformed replace spec on %q: %v", ErrValidation, op.Path, err)
	}
	return &spec, nil
}

// JSONElements decodes the payload for APPEND_TO_JSON_ARRAY. A JSON array
// is spliced element-wise; any other value is appended as one element.
func (op *Operation) JSONElements() ([]json.RawMessage, error) {
	if !op.hasContent() {
		return nil, fmt.Errorf("%w: content is required for %s on %q", ErrValidation, op.Action, op.Path)
	}
	var many []json.RawMessage
	if err := json.Unmarshal(op.Content, &many); err == nil {
		return many, nil
	}
	var one json.RawMessage
	if err := json.Unmarshal(op.Content, &one); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON content on %q: %v", ErrValidation, op.Path, err)
	}
	return []json.RawMessage{one}, nil
}

// Validate checks the operation's structural shape before execution:
// known action, non-empty path, and a content payload matching the action.
func (op *Operation) Validate() error {
	if op.Path == "" {
		return fmt.Errorf("%w: missing path", ErrValidation)
	}
	switch op.Action {
	case ActionCreateFile, ActionModifyFile, ActionAppendToFile:
		_, err := op.TextContent()
		return err
	case ActionReplaceInFile:
		spec, err := op.Replace()
		if err != nil {
			return err
		}
		if spec.Pattern == "" {
			return fmt.Errorf("%w: empty pattern for %s on %q", ErrValidation, op.Action, op.Path)
		}
		return nil
	case ActionAppendToJSONArray:
		_, err := op.JSONElements()
		return err
	case ActionDeleteFile, ActionCreateDirectory:
		return nil
	case "":
		return fmt.Errorf("%w: missing action for %q", ErrValidation, op.Path)
	default:
		return fmt.Errorf("%w: unsupported action %q for %q", ErrValidation, op.Action, op.Path)
	}
}

// PackageVersion is the accepted modification package schema version.
const PackageVersion = "1.1"

// Package is a parsed modification package: an ordered operation batch.
type Package struct {
	Version       string      `json:"version"`
	Modifications []Operation `json:"modifications"`
}

// ParsePackage decodes and structurally validates a modification package.
func ParsePackage(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: malformed package: %v", ErrValidation, err)
	}
	if pkg.Version != PackageVersion {
		return nil, fmt.Errorf("%w: unsupported package version %q (want %q)", ErrValidation, pkg.Version, PackageVersion)
	}
	for i := range pkg.Modifications {
		if err := pkg.Modifications[i].Validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
	}
	return &pkg, nil
}

// LoadPackage reads and parses a modification package file.
func LoadPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package %s: %w", path, err)
	}
	return ParsePackage(data)
}

// marshalIndented serializes v with two-space indent and without HTML
// escaping, the canonical form for JSON payloads written to files.
func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode appends a newline; the canonical form has none.
	return []byte(strings.TrimRight(buf.String(), "\n")), nil
}
