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

// Package memory implements merkle.Storage on top of an in-process
// github.com/google/btree index, the default backend for tests and the
// smttool CLI's "memory" mode.
package memory

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

const btreeDegree = 32

// item is the btree.Item stored for each persisted node, ordered by the
// node's big.Int key value so Ascend visits nodes in a deterministic
// order (handy for debug dumps; Tree.Walk does not depend on this order).
type item struct {
	key  field.Hash
	node *merkle.Node
}

func (a item) Less(than btree.Item) bool {
	b := than.(item)
	return a.key.BigInt().Cmp(b.key.BigInt()) < 0
}

// Storage is an in-memory merkle.Storage. It is safe for concurrent use.
type Storage struct {
	mu   sync.RWMutex
	tree *btree.BTree
	root field.Hash
	set  bool
}

// New returns an empty in-memory Storage.
func New() *Storage {
	return &Storage{tree: btree.New(btreeDegree)}
}

// Get implements merkle.Storage.
func (s *Storage) Get(_ context.Context, key *field.Hash) (*merkle.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	got := s.tree.Get(item{key: *key})
	if got == nil {
		return nil, merkle.ErrNotFound
	}
	return got.(item).node, nil
}

// Put implements merkle.Storage.
func (s *Storage) Put(_ context.Context, key *field.Hash, n *merkle.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{key: *key, node: n})
	return nil
}

// GetRoot implements merkle.Storage.
func (s *Storage) GetRoot(_ context.Context) (*field.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return nil, merkle.ErrNotFound
	}
	root := s.root
	return &root, nil
}

// SetRoot implements merkle.Storage.
func (s *Storage) SetRoot(_ context.Context, key *field.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = *key
	s.set = true
	return nil
}

// Len returns the number of persisted nodes, for diagnostics.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
