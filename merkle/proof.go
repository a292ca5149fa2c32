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
	"math/big"

	"github.com/fieldtree/smt/field"
)

// NodeAux carries the auxiliary leaf (k', v') a non-membership proof
// terminates at, so a verifier can re-derive that leaf's key and confirm
// it occupies the slot reached by descending path(k).
type NodeAux struct {
	Key   *field.Hash
	Value *field.Hash
}

// Proof is a membership or non-membership witness for a single key.
type Proof struct {
	// Existence is true iff a leaf with the queried key was reached.
	Existence bool

	// depth is the number of Middle nodes traversed during the descent.
	depth uint

	// notEmpties is a bitmap: bit i set iff the sibling at depth i was
	// non-empty. It lets a verifier re-inflate siblings (which only
	// records non-zero ones) back to `depth` entries.
	notEmpties [256 / 8]byte

	// siblings is the compressed sibling list: only non-zero siblings.
	siblings []*field.Hash

	// NodeAux is set only for non-membership proofs terminating at a
	// different leaf.
	NodeAux *NodeAux
}

// Depth returns the number of levels traversed to produce this proof.
func (p *Proof) Depth() uint { return p.depth }

// AllSiblings re-inflates the compressed sibling list back to Depth()
// entries, substituting field.Zero wherever notEmpties says the sibling
// at that level was empty.
func (p *Proof) AllSiblings() []*field.Hash {
	out := make([]*field.Hash, p.depth)
	si := 0
	for i := uint(0); i < p.depth; i++ {
		if field.TestBitBigEndian(p.notEmpties[:], i) {
			out[i] = p.siblings[si]
			si++
		} else {
			out[i] = &field.Zero
		}
	}
	return out
}

// GenerateProof produces the existence/non-existence proof for k against
// rootKey. If rootKey is field.Zero (or nil), the tree's current root is
// substituted. It returns the proof and the value found at the reached
// leaf (0 when the descent terminates at Empty).
func (t *Tree) GenerateProof(ctx context.Context, k *big.Int, rootKey *field.Hash) (*Proof, *big.Int, error) {
	p := &Proof{}

	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return nil, nil, err
	}
	path := getPath(t.maxLevels, kHash)

	if rootKey == nil || rootKey.IsZero() {
		rootKey = t.rootKey
	}

	nextKey := rootKey
	for ; p.depth < uint(t.maxLevels); p.depth++ {
		n, err := t.getNode(ctx, nextKey)
		if err != nil {
			return nil, nil, err
		}

		var siblingKey *field.Hash
		switch n.Type {
		case NodeTypeEmpty:
			return p, big.NewInt(0), nil
		case NodeTypeLeaf:
			if *n.Entry[0] == *kHash {
				p.Existence = true
				return p, n.Entry[1].BigInt(), nil
			}
			p.NodeAux = &NodeAux{Key: n.Entry[0], Value: n.Entry[1]}
			return p, n.Entry[1].BigInt(), nil
		case NodeTypeMiddle:
			if path[p.depth] {
				nextKey, siblingKey = n.ChildR, n.ChildL
			} else {
				nextKey, siblingKey = n.ChildL, n.ChildR
			}
		default:
			return nil, nil, ErrInvalidNodeFound
		}
		if !siblingKey.IsZero() {
			field.SetBitBigEndian(p.notEmpties[:], p.depth)
			p.siblings = append(p.siblings, siblingKey)
		}
	}
	return nil, nil, ErrReachedMaxLevel
}

// VerifyProof recomputes a root from (k, v, proof) using hasher and
// reports whether it equals wantRoot. For an existence proof this checks
// that the leaf key derived from (k, v) sits on path(k) under wantRoot.
// For a non-existence proof with NodeAux set, it instead checks that the
// leaf key derived from NodeAux sits on path(k); a NodeAux-less
// non-existence proof simply checks the descent reaches Empty.
func VerifyProof(hasher Hasher, maxLevels int, wantRoot *field.Hash, k, v *big.Int, p *Proof) (bool, error) {
	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return false, err
	}
	path := getPath(maxLevels, kHash)
	siblings := p.AllSiblings()

	var leafKey *field.Hash
	if p.Existence {
		vHash, err := field.NewHashFromBigInt(v)
		if err != nil {
			return false, err
		}
		leafKey, err = NewNodeLeaf(kHash, vHash).Key(hasher)
		if err != nil {
			return false, err
		}
	} else if p.NodeAux != nil {
		if *p.NodeAux.Key == *kHash {
			// A NodeAux equal to the queried key would prove existence,
			// not non-existence: reject.
			return false, nil
		}
		auxPath := getPath(maxLevels, p.NodeAux.Key)
		for i := uint(0); i < p.depth; i++ {
			if auxPath[i] != path[i] {
				// the aux leaf doesn't actually share k's prefix down to
				// the claimed depth.
				return false, nil
			}
		}
		var err error
		leafKey, err = NewNodeLeaf(p.NodeAux.Key, p.NodeAux.Value).Key(hasher)
		if err != nil {
			return false, err
		}
	} else {
		leafKey = &field.Zero
	}

	cur := leafKey
	for i := int(p.depth) - 1; i >= 0; i-- {
		var mid *Node
		if path[i] {
			mid = NewNodeMiddle(siblings[i], cur)
		} else {
			mid = NewNodeMiddle(cur, siblings[i])
		}
		cur, err = mid.Key(hasher)
		if err != nil {
			return false, err
		}
	}
	return *cur == *wantRoot, nil
}
