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
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizePath cleans and normalizes a repo-relative path, removing
// leading/trailing slashes and converting backslashes.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "." {
		return ""
	}
	return path
}

// SafeJoin resolves sub against root and ensures the result stays inside root.
// Returns ErrInvalidPath for traversal attempts (e.g. "../../etc/passwd") and
// for absolute sub paths that escape the root.
func SafeJoin(root, sub string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(absRoot, filepath.FromSlash(sub)))
	if err != nil {
		return "", err
	}
	if full != absRoot && !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q: %w", sub, root, ErrInvalidPath)
	}
	return full, nil
}

// ToSlashRel returns path relative to root in slash form, for receipts and
// manifests that must be stable across platforms.
func ToSlashRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
