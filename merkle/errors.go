// Copyright 2024 The SMT Authors.
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

package merkle

import "errors"

// The closed set of errors this package returns. Callers should compare
// against these sentinels directly; no wrapping framework is used.
var (
	// ErrKeyNotFound is returned by Update/Delete when the descent
	// reaches Empty or a leaf whose key doesn't match. Get reports that
	// case through its returned key instead.
	ErrKeyNotFound = errors.New("merkle: key not found")

	// ErrEntryIndexAlreadyExists is returned by Add when a leaf with the
	// same key is already present.
	ErrEntryIndexAlreadyExists = errors.New("merkle: entry index already exists")

	// ErrReachedMaxLevel is returned when a descent or split would need
	// to go deeper than maxLevels.
	ErrReachedMaxLevel = errors.New("merkle: reached maximum level of the tree")

	// ErrInvalidNodeFound is returned when a persisted node has an
	// unrecognized type tag.
	ErrInvalidNodeFound = errors.New("merkle: found an invalid node in storage")

	// ErrNotFound is returned by a Storage implementation when a NodeKey
	// that should be present (per the root/ancestor chain) is missing.
	ErrNotFound = errors.New("merkle: storage key not found")

	// ErrNotWritable is returned by any mutating call on a read-only tree.
	ErrNotWritable = errors.New("merkle: tree is not writable")

	// ErrFieldOverflow is returned when a key or value is outside
	// [0, field.Modulus).
	ErrFieldOverflow = errors.New("merkle: key or value outside the scalar field")
)
