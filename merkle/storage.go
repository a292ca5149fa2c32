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

import (
	"context"

	"github.com/fieldtree/smt/field"
)

// Storage is the external, content-addressed key-value contract the tree
// delegates node persistence to, plus a single mutable "current root"
// cell. Implementations live under the storage/ directory; none of them
// are imported by this package, which only depends on this interface.
//
// Storage MUST be durable across a single committed operation boundary.
// The tree assumes exclusive write access: concurrent writers racing on
// SetRoot are not supported by this package.
type Storage interface {
	// Get returns the node persisted at key, or ErrNotFound if absent.
	Get(ctx context.Context, key *field.Hash) (*Node, error)

	// Put persists node at its own content-addressed key. Put is
	// idempotent: repeated puts of the same (key, node) pair succeed.
	Put(ctx context.Context, key *field.Hash, n *Node) error

	// GetRoot returns ErrNotFound for a fresh store that has never had
	// SetRoot called on it; NewTree treats that as an empty tree rooted
	// at field.Zero and persists it with an initial SetRoot.
	GetRoot(ctx context.Context) (*field.Hash, error)

	// SetRoot atomically updates the current root pointer. This is the
	// commit point of every mutating tree operation.
	SetRoot(ctx context.Context, key *field.Hash) error
}
