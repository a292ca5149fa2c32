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

// Package merkle implements a fixed-depth, content-addressed Sparse
// Merkle Tree over a prime-order scalar field, combining nodes with an
// injected two/three-input field hash. See field-native hash contract in
// Hasher and the storage contract in Storage.
package merkle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/golang/glog"

	"github.com/fieldtree/smt/field"
)

// Tree is a single-writer Sparse Merkle Tree. Its cached root is the only
// mutable datum; nodes are immutable once persisted and are never
// garbage-collected, so historical roots remain navigable as long as
// they are retained by the caller.
type Tree struct {
	db        Storage
	hasher    Hasher
	rootKey   *field.Hash
	writable  bool
	maxLevels int
}

// NewTree loads (or initializes) a tree over storage, using hasher to
// combine nodes and bounding every leaf to depth < maxLevels.
func NewTree(ctx context.Context, storage Storage, hasher Hasher, maxLevels int) (*Tree, error) {
	t := &Tree{db: storage, hasher: hasher, maxLevels: maxLevels, writable: true}

	root, err := storage.GetRoot(ctx)
	if err == ErrNotFound {
		t.rootKey = &field.Zero
		if err := storage.SetRoot(ctx, t.rootKey); err != nil {
			return nil, err
		}
		return t, nil
	} else if err != nil {
		return nil, err
	}
	t.rootKey = root
	return t, nil
}

// Root returns the current root NodeKey.
func (t *Tree) Root() *field.Hash { return t.rootKey }

// MaxLevels returns the tree's fixed maximum depth.
func (t *Tree) MaxLevels() int { return t.maxLevels }

// Writable reports whether mutating operations are permitted.
func (t *Tree) Writable() bool { return t.writable }

// Snapshot returns a read-only Tree pinned at rootKey, sharing the same
// storage and hasher. Because old nodes are never deleted, any
// historical root that is still reachable can be snapshotted.
func (t *Tree) Snapshot(ctx context.Context, rootKey *field.Hash) (*Tree, error) {
	if _, err := t.getNode(ctx, rootKey); err != nil {
		return nil, err
	}
	return &Tree{db: t.db, hasher: t.hasher, maxLevels: t.maxLevels, rootKey: rootKey, writable: false}, nil
}

func validateKV(k, v *big.Int) error {
	if !field.InField(k) || !field.InField(v) {
		return ErrFieldOverflow
	}
	return nil
}

// Add inserts a new leaf (k, v). Fails with ErrEntryIndexAlreadyExists if
// k is already present, ErrReachedMaxLevel if the split would exceed
// maxLevels, and ErrNotWritable on a read-only tree.
func (t *Tree) Add(ctx context.Context, k, v *big.Int) error {
	if !t.writable {
		return ErrNotWritable
	}
	if err := validateKV(k, v); err != nil {
		return err
	}

	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return err
	}
	vHash, err := field.NewHashFromBigInt(v)
	if err != nil {
		return err
	}

	newLeaf := NewNodeLeaf(kHash, vHash)
	path := getPath(t.maxLevels, kHash)

	newRootKey, err := t.addLeaf(ctx, newLeaf, t.rootKey, 0, path)
	if err != nil {
		return err
	}
	t.rootKey = newRootKey
	return t.db.SetRoot(ctx, t.rootKey)
}

// addLeaf recursively descends toward newLeaf's path, splitting an
// existing leaf with pushLeaf if one is in the way.
func (t *Tree) addLeaf(ctx context.Context, newLeaf *Node, key *field.Hash, lvl int, path []bool) (*field.Hash, error) {
	if lvl > t.maxLevels-1 {
		return nil, ErrReachedMaxLevel
	}
	n, err := t.getNode(ctx, key)
	if err != nil {
		return nil, err
	}
	switch n.Type {
	case NodeTypeEmpty:
		return t.addNode(ctx, newLeaf)
	case NodeTypeLeaf:
		if *n.Entry[0] == *newLeaf.Entry[0] {
			return nil, ErrEntryIndexAlreadyExists
		}
		pathOldLeaf := getPath(t.maxLevels, n.Entry[0])
		return t.pushLeaf(ctx, newLeaf, n, lvl, path, pathOldLeaf)
	case NodeTypeMiddle:
		var nextKey *field.Hash
		var newMiddle *Node
		if path[lvl] {
			nextKey, err = t.addLeaf(ctx, newLeaf, n.ChildR, lvl+1, path)
			newMiddle = NewNodeMiddle(n.ChildL, nextKey)
		} else {
			nextKey, err = t.addLeaf(ctx, newLeaf, n.ChildL, lvl+1, path)
			newMiddle = NewNodeMiddle(nextKey, n.ChildR)
		}
		if err != nil {
			return nil, err
		}
		return t.addNode(ctx, newMiddle)
	default:
		return nil, ErrInvalidNodeFound
	}
}

// pushLeaf pushes oldLeaf down the tree, level by level, until its path
// diverges from newLeaf's, at which point both leaves are placed in
// their respective slots of the same Middle node.
func (t *Tree) pushLeaf(ctx context.Context, newLeaf, oldLeaf *Node, lvl int, pathNewLeaf, pathOldLeaf []bool) (*field.Hash, error) {
	if lvl > t.maxLevels-2 {
		return nil, ErrReachedMaxLevel
	}
	if pathNewLeaf[lvl] == pathOldLeaf[lvl] {
		nextKey, err := t.pushLeaf(ctx, newLeaf, oldLeaf, lvl+1, pathNewLeaf, pathOldLeaf)
		if err != nil {
			return nil, err
		}
		var middle *Node
		if pathNewLeaf[lvl] {
			middle = NewNodeMiddle(&field.Zero, nextKey)
		} else {
			middle = NewNodeMiddle(nextKey, &field.Zero)
		}
		return t.addNode(ctx, middle)
	}

	oldLeafKey, err := oldLeaf.Key(t.hasher)
	if err != nil {
		return nil, err
	}
	newLeafKey, err := newLeaf.Key(t.hasher)
	if err != nil {
		return nil, err
	}

	var middle *Node
	if pathNewLeaf[lvl] {
		middle = NewNodeMiddle(oldLeafKey, newLeafKey)
	} else {
		middle = NewNodeMiddle(newLeafKey, oldLeafKey)
	}
	// oldLeaf is already persisted; only newLeaf needs writing.
	if _, err := t.addNode(ctx, newLeaf); err != nil {
		return nil, err
	}
	return t.addNode(ctx, middle)
}

// addNode persists a freshly built node, keyed by its own content hash.
// Empty is never written; field.Zero stands in for it.
func (t *Tree) addNode(ctx context.Context, n *Node) (*field.Hash, error) {
	if !t.writable {
		return nil, ErrNotWritable
	}
	k, err := n.Key(t.hasher)
	if err != nil {
		return nil, err
	}
	if n.Type == NodeTypeEmpty {
		return k, nil
	}
	if err := t.db.Put(ctx, k, n); err != nil {
		return nil, err
	}
	glog.V(4).Infof("merkle: persisted %s node %s", n.Type, k)
	return k, nil
}

// Update replaces the value of an existing leaf and rebuilds the path to
// the root. Fails with ErrKeyNotFound if k is absent.
func (t *Tree) Update(ctx context.Context, k, v *big.Int) (*CircomProcessorProof, error) {
	if !t.writable {
		return nil, ErrNotWritable
	}
	if err := validateKV(k, v); err != nil {
		return nil, err
	}

	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return nil, err
	}
	vHash, err := field.NewHashFromBigInt(v)
	if err != nil {
		return nil, err
	}
	path := getPath(t.maxLevels, kHash)

	cp := &CircomProcessorProof{Fnc: 1, OldRoot: t.rootKey, OldKey: kHash, NewKey: kHash, NewValue: vHash}

	nextKey := t.rootKey
	siblings := []*field.Hash{}
	for i := 0; i < t.maxLevels; i++ {
		n, err := t.getNode(ctx, nextKey)
		if err != nil {
			return nil, err
		}
		switch n.Type {
		case NodeTypeEmpty:
			return nil, ErrKeyNotFound
		case NodeTypeLeaf:
			if *n.Entry[0] != *kHash {
				return nil, ErrKeyNotFound
			}
			cp.OldValue = n.Entry[1]
			cp.Siblings = CircomSiblingsFromSiblings(siblings, t.maxLevels)

			newLeaf := NewNodeLeaf(kHash, vHash)
			if _, err := t.updateNode(ctx, newLeaf); err != nil {
				return nil, err
			}
			newRootKey, err := t.recalculatePathUntilRoot(ctx, path, newLeaf, siblings)
			if err != nil {
				return nil, err
			}
			t.rootKey = newRootKey
			if err := t.db.SetRoot(ctx, t.rootKey); err != nil {
				return nil, err
			}
			cp.NewRoot = newRootKey
			return cp, nil
		case NodeTypeMiddle:
			if path[i] {
				nextKey, siblings = n.ChildR, append(siblings, n.ChildL)
			} else {
				nextKey, siblings = n.ChildL, append(siblings, n.ChildR)
			}
		default:
			return nil, ErrInvalidNodeFound
		}
	}
	return nil, ErrKeyNotFound
}

// updateNode re-persists a node at its (possibly unchanged) key.
func (t *Tree) updateNode(ctx context.Context, n *Node) (*field.Hash, error) {
	if !t.writable {
		return nil, ErrNotWritable
	}
	k, err := n.Key(t.hasher)
	if err != nil {
		return nil, err
	}
	if n.Type == NodeTypeEmpty {
		return k, nil
	}
	return k, t.db.Put(ctx, k, n)
}

// Get walks to the bottom of path(k). It returns (0, 0, siblings) when
// the path ends at Empty, and (k', v', siblings) at a Leaf — whether or
// not k' == k; the caller inspects the returned key to distinguish
// presence from a non-membership witness. Get never returns
// ErrKeyNotFound: a non-membership result is signalled by a returned key
// different from k, not by an error.
func (t *Tree) Get(ctx context.Context, k *big.Int) (foundKey, foundValue *big.Int, siblings []*field.Hash, err error) {
	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return nil, nil, nil, err
	}
	path := getPath(t.maxLevels, kHash)

	nextKey := t.rootKey
	siblings = []*field.Hash{}
	for i := 0; i < t.maxLevels; i++ {
		n, err := t.getNode(ctx, nextKey)
		if err != nil {
			return nil, nil, nil, err
		}
		switch n.Type {
		case NodeTypeEmpty:
			return big.NewInt(0), big.NewInt(0), siblings, nil
		case NodeTypeLeaf:
			return n.Entry[0].BigInt(), n.Entry[1].BigInt(), siblings, nil
		case NodeTypeMiddle:
			if path[i] {
				nextKey, siblings = n.ChildR, append(siblings, n.ChildL)
			} else {
				nextKey, siblings = n.ChildL, append(siblings, n.ChildR)
			}
		default:
			return nil, nil, nil, ErrInvalidNodeFound
		}
	}
	return nil, nil, nil, ErrReachedMaxLevel
}

// Delete removes the leaf at k, collapsing the path back up to the root.
func (t *Tree) Delete(ctx context.Context, k *big.Int) error {
	if !t.writable {
		return ErrNotWritable
	}
	if !field.InField(k) {
		return ErrFieldOverflow
	}

	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return err
	}
	path := getPath(t.maxLevels, kHash)

	nextKey := t.rootKey
	siblings := []*field.Hash{}
	for i := 0; i < t.maxLevels; i++ {
		n, err := t.getNode(ctx, nextKey)
		if err != nil {
			return err
		}
		switch n.Type {
		case NodeTypeEmpty:
			return ErrKeyNotFound
		case NodeTypeLeaf:
			if *n.Entry[0] != *kHash {
				return ErrKeyNotFound
			}
			return t.rmAndUpload(ctx, path, siblings)
		case NodeTypeMiddle:
			if path[i] {
				nextKey, siblings = n.ChildR, append(siblings, n.ChildL)
			} else {
				nextKey, siblings = n.ChildL, append(siblings, n.ChildR)
			}
		default:
			return ErrInvalidNodeFound
		}
	}
	return ErrKeyNotFound
}

// rmAndUpload rebuilds the path above a deleted leaf. When the deleted
// leaf's own sibling is a Middle node, that subtree stays at its depth
// with an empty slot where the leaf was. When it is a leaf, siblings are
// scanned from deepest to shallowest looking for the deepest non-zero one
// above it: the sibling leaf is lifted up to just below that one (or to
// the root when there is none), preserving the invariant that no
// internal node has an empty co-child of a leaf.
func (t *Tree) rmAndUpload(ctx context.Context, path []bool, siblings []*field.Hash) error {
	if len(siblings) == 0 {
		t.rootKey = &field.Zero
		return t.db.SetRoot(ctx, t.rootKey)
	}

	toUpload := siblings[len(siblings)-1]
	nearest, err := t.getNode(ctx, toUpload)
	if err != nil {
		return err
	}
	if nearest.Type == NodeTypeMiddle {
		// A Middle sibling's children sit where their own path bits put
		// them, so it cannot move up: keep it beside an empty slot.
		newRootKey, err := t.recalculatePathUntilRoot(ctx, path, NewNodeEmpty(), siblings)
		if err != nil {
			return err
		}
		t.rootKey = newRootKey
		return t.db.SetRoot(ctx, t.rootKey)
	}
	if len(siblings) < 2 {
		t.rootKey = siblings[0]
		return t.db.SetRoot(ctx, t.rootKey)
	}

	for i := len(siblings) - 2; i >= 0; i-- {
		if !siblings[i].IsZero() {
			var newNode *Node
			if path[i] {
				newNode = NewNodeMiddle(siblings[i], toUpload)
			} else {
				newNode = NewNodeMiddle(toUpload, siblings[i])
			}
			if _, err := t.addNode(ctx, newNode); err != nil {
				return err
			}
			newRootKey, err := t.recalculatePathUntilRoot(ctx, path, newNode, siblings[:i])
			if err != nil {
				return err
			}
			t.rootKey = newRootKey
			return t.db.SetRoot(ctx, t.rootKey)
		}
		if i == 0 {
			t.rootKey = toUpload
			return t.db.SetRoot(ctx, t.rootKey)
		}
	}
	return nil
}

// recalculatePathUntilRoot pairs node with each sibling in reverse
// (deepest surviving sibling first), emitting and persisting the chain
// of Middle nodes up to a new root.
func (t *Tree) recalculatePathUntilRoot(ctx context.Context, path []bool, node *Node, siblings []*field.Hash) (*field.Hash, error) {
	for i := len(siblings) - 1; i >= 0; i-- {
		nodeKey, err := node.Key(t.hasher)
		if err != nil {
			return nil, err
		}
		if path[i] {
			node = NewNodeMiddle(siblings[i], nodeKey)
		} else {
			node = NewNodeMiddle(nodeKey, siblings[i])
		}
		if _, err := t.addNode(ctx, node); err != nil {
			return nil, err
		}
	}
	return node.Key(t.hasher)
}

// GetNode resolves key to its Node, synthesizing the Empty node for
// field.Zero without touching storage. Empty nodes are never persisted;
// this is the only way to observe one.
func (t *Tree) GetNode(ctx context.Context, key *field.Hash) (*Node, error) {
	return t.getNode(ctx, key)
}

// getNode resolves key to its Node, synthesizing the Empty node for
// field.Zero without touching storage.
func (t *Tree) getNode(ctx context.Context, key *field.Hash) (*Node, error) {
	if key.IsZero() {
		return NewNodeEmpty(), nil
	}
	n, err := t.db.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Walk visits every node reachable from rootKey exactly once, calling f
// for each; every empty child slot is reported as its own Empty node. If
// rootKey is nil the tree's current root is used. Unlike a
// naive recursive walk, this uses an explicit stack so it can't recurse
// into itself unboundedly on a malformed tree.
func (t *Tree) Walk(ctx context.Context, rootKey *field.Hash, f func(*Node)) error {
	if rootKey == nil {
		rootKey = t.rootKey
	}
	stack := []*field.Hash{rootKey}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := t.getNode(ctx, key)
		if err != nil {
			return err
		}
		f(n)
		switch n.Type {
		case NodeTypeEmpty, NodeTypeLeaf:
		case NodeTypeMiddle:
			stack = append(stack, n.ChildL, n.ChildR)
		default:
			return fmt.Errorf("merkle: walk: %w", ErrInvalidNodeFound)
		}
	}
	return nil
}

// DumpLeaves returns every (k, v) pair reachable from rootKey, in the
// order Walk visits them. It is the export half of the compaction path
// described for implementations that want to garbage-collect orphaned
// history; there is no corresponding byte-format import (see DESIGN.md).
func (t *Tree) DumpLeaves(ctx context.Context, rootKey *field.Hash) ([][2]*big.Int, error) {
	var out [][2]*big.Int
	err := t.Walk(ctx, rootKey, func(n *Node) {
		if n.Type == NodeTypeLeaf {
			out = append(out, [2]*big.Int{n.Entry[0].BigInt(), n.Entry[1].BigInt()})
		}
	})
	return out, err
}

// Compact rebuilds the live leaf set of this tree into a fresh Storage,
// dropping every orphaned/superseded node kept around by the
// never-garbage-collect policy. It returns a new Tree over dst.
func (t *Tree) Compact(ctx context.Context, dst Storage) (*Tree, error) {
	leaves, err := t.DumpLeaves(ctx, t.rootKey)
	if err != nil {
		return nil, err
	}
	nt, err := NewTree(ctx, dst, t.hasher, t.maxLevels)
	if err != nil {
		return nil, err
	}
	for _, kv := range leaves {
		if err := nt.Add(ctx, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	glog.V(2).Infof("merkle: compacted %d leaves from root %s into new root %s", len(leaves), t.rootKey, nt.rootKey)
	return nt, nil
}
