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

// CircomSiblingsFromSiblings right-pads sibs with field.Zero out to
// maxLevels+1 entries. The extra trailing slot carries a terminator that
// simplifies in-circuit consumption of a fixed-length array.
func CircomSiblingsFromSiblings(sibs []*field.Hash, maxLevels int) []*field.Hash {
	out := make([]*field.Hash, len(sibs), maxLevels+1)
	copy(out, sibs)
	for i := len(out); i < maxLevels+1; i++ {
		out = append(out, &field.Zero)
	}
	return out
}

// CircomVerifierProof is a read-only witness for a key, shaped for
// arithmetic-circuit verifiers. Fnc is 0 for membership, 1 for
// non-membership.
type CircomVerifierProof struct {
	Root     *field.Hash
	Siblings []*field.Hash
	OldKey   *field.Hash
	OldValue *field.Hash
	Key      *field.Hash
	Value    *field.Hash
	Fnc      int
}

// CircomProcessorProof is the before/after witness of a mutating
// operation, shaped for arithmetic-circuit verifiers. Fnc: 0=noop,
// 1=update, 2=insert, 3=delete.
type CircomProcessorProof struct {
	OldRoot  *field.Hash
	NewRoot  *field.Hash
	Siblings []*field.Hash
	OldKey   *field.Hash
	OldValue *field.Hash
	NewKey   *field.Hash
	NewValue *field.Hash
	IsOld0   bool
	Fnc      int
}

// GenerateCircomVerifierProof returns the CircomVerifierProof for k. If
// rootKey is nil, the tree's current root is used.
func (t *Tree) GenerateCircomVerifierProof(ctx context.Context, k *big.Int, rootKey *field.Hash) (*CircomVerifierProof, error) {
	if rootKey == nil {
		rootKey = t.rootKey
	}
	p, v, err := t.GenerateProof(ctx, k, rootKey)
	if err != nil {
		return nil, err
	}

	cp := &CircomVerifierProof{Root: rootKey}
	cp.Siblings = CircomSiblingsFromSiblings(p.AllSiblings(), t.maxLevels)
	if p.NodeAux != nil {
		cp.OldKey = p.NodeAux.Key
		cp.OldValue = p.NodeAux.Value
	} else {
		cp.OldKey = &field.Zero
		cp.OldValue = &field.Zero
	}

	kHash, err := field.NewHashFromBigInt(k)
	if err != nil {
		return nil, err
	}
	cp.Key = kHash
	vHash, err := field.NewHashFromBigInt(v)
	if err != nil {
		return nil, err
	}
	cp.Value = vHash

	if p.Existence {
		cp.Fnc = 0
	} else {
		cp.Fnc = 1
	}
	return cp, nil
}

// AddAndGetCircomProof performs an Add and returns the
// CircomProcessorProof for that insertion. It looks up k first so the
// recorded siblings and OldKey/OldValue/IsOld0 reflect the pre-insert
// tree state the circuit expects, then performs the Add itself.
func (t *Tree) AddAndGetCircomProof(ctx context.Context, k, v *big.Int) (*CircomProcessorProof, error) {
	cp := &CircomProcessorProof{Fnc: 2, OldRoot: t.rootKey}

	gotK, gotV, siblings, err := t.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	oldKey, err := field.NewHashFromBigInt(gotK)
	if err != nil {
		return nil, err
	}
	oldValue, err := field.NewHashFromBigInt(gotV)
	if err != nil {
		return nil, err
	}
	cp.OldKey = oldKey
	cp.OldValue = oldValue
	cp.IsOld0 = oldKey.IsZero()
	cp.Siblings = CircomSiblingsFromSiblings(siblings, t.maxLevels)

	if err := t.Add(ctx, k, v); err != nil {
		return nil, err
	}

	newKey, err := field.NewHashFromBigInt(k)
	if err != nil {
		return nil, err
	}
	newValue, err := field.NewHashFromBigInt(v)
	if err != nil {
		return nil, err
	}
	cp.NewKey = newKey
	cp.NewValue = newValue
	cp.NewRoot = t.rootKey
	return cp, nil
}
