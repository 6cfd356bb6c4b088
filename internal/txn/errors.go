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
	"errors"
	"fmt"
)

// Failure taxonomy. Every variant is fatal to the batch: the engine aborts
// remaining operations and rolls back. None are retryable at this level;
// transient reads are retried below, before an error surfaces here.
var (
	// ErrSecurity marks operations whose resolved path escapes the root.
	ErrSecurity = errors.New("security violation")

	// ErrStateConflict marks a divergence between the expected and actual
	// state of a target file. The caller must re-read and resubmit.
	ErrStateConflict = errors.New("state conflict")

	// ErrDataLoss marks replacement content rejected by the data-loss guard.
	ErrDataLoss = errors.New("data loss guard")

	// ErrIntegrity marks a post-write read-back fingerprint mismatch.
	ErrIntegrity = errors.New("integrity verification failed")

	// ErrValidation marks a structurally invalid operation.
	ErrValidation = errors.New("invalid operation")
)

// StateConflictError reports both sides of a fingerprint divergence so the
// caller can see what the file actually contains.
type StateConflictError struct {
	Path     string
	Expected string
	Actual   string
	Reason   string
}

func (e *StateConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("state conflict on %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("state conflict on %q: expected %s, found %s", e.Path, e.Expected, e.Actual)
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// DataLossError reports why replacement content looked like a truncation
// or placeholder.
type DataLossError struct {
	Path   string
	Reason string
}

func (e *DataLossError) Error() string {
	return fmt.Sprintf("data loss guard rejected modification of %q: %s", e.Path, e.Reason)
}

func (e *DataLossError) Is(target error) bool { return target == ErrDataLoss }

// IntegrityError reports a post-write verification mismatch.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("post-write verification failed for %q: expected %s, found %s", e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }
