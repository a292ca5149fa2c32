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

package merkle_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
	"github.com/fieldtree/smt/storage/memory"
	"github.com/fieldtree/smt/testhash"
)

const maxLevels = 40

func newTestTree(t *testing.T) *merkle.Tree {
	t.Helper()
	ctx := context.Background()
	tr, err := merkle.NewTree(ctx, memory.New(), testhash.New(), maxLevels)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tr
}

func TestAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)

	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	k, v, sibs, err := tr.Get(ctx, big.NewInt(1))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if k.Cmp(big.NewInt(1)) != 0 || v.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("Get = (%v, %v), want (1, 2)", k, v)
	}
	if len(sibs) != 0 {
		t.Fatalf("expected no siblings for a single-leaf tree, got %d", len(sibs))
	}
}

func TestAddTwiceFails(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(3)); err != merkle.ErrEntryIndexAlreadyExists {
		t.Fatalf("second Add err = %v, want ErrEntryIndexAlreadyExists", err)
	}
}

func TestSplitAtDepth0(t *testing.T) {
	// path(1)[0] and path(2)[0] differ, so the two leaves split at depth 0.
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Add(ctx, big.NewInt(2), big.NewInt(3)); err != nil {
		t.Fatal(err)
	}
	_, v, sibs, err := tr.Get(ctx, big.NewInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if v.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("value = %v, want 3", v)
	}
	if len(sibs) != 1 {
		t.Fatalf("expected exactly one sibling, got %d", len(sibs))
	}
}

func TestUpdateChangesValue(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	cp, err := tr.Update(ctx, big.NewInt(1), big.NewInt(5))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cp.Fnc != 1 {
		t.Fatalf("CircomProcessorProof.Fnc = %d, want 1", cp.Fnc)
	}
	_, v, _, err := tr.Get(ctx, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if v.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("value after update = %v, want 5", v)
	}
}

func TestUpdateMissingKeyFails(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if _, err := tr.Update(ctx, big.NewInt(1), big.NewInt(2)); err != merkle.ErrKeyNotFound {
		t.Fatalf("Update on missing key err = %v, want ErrKeyNotFound", err)
	}
}

func TestDeleteEmptiesTree(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Delete(ctx, big.NewInt(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !tr.Root().IsZero() {
		t.Fatalf("root after deleting the only leaf = %v, want zero", tr.Root())
	}
	k, v, _, err := tr.Get(ctx, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if k.Sign() != 0 || v.Sign() != 0 {
		t.Fatalf("Get after delete = (%v, %v), want (0, 0)", k, v)
	}
}

func TestDeleteMissingKeyFails(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Delete(ctx, big.NewInt(1)); err != merkle.ErrKeyNotFound {
		t.Fatalf("Delete missing key err = %v, want ErrKeyNotFound", err)
	}
}

func TestDeleteCollapsesMiddleNoEmptyCoChild(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	for _, kv := range [][2]int64{{1, 2}, {2, 3}, {3, 4}} {
		if err := tr.Add(ctx, big.NewInt(kv[0]), big.NewInt(kv[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Delete(ctx, big.NewInt(3)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var sawBadMiddle bool
	var walkErr error
	err := tr.Walk(ctx, nil, func(n *merkle.Node) {
		if n.Type != merkle.NodeTypeMiddle || walkErr != nil {
			return
		}
		left, err := tr.GetNode(ctx, n.ChildL)
		if err != nil {
			walkErr = err
			return
		}
		right, err := tr.GetNode(ctx, n.ChildR)
		if err != nil {
			walkErr = err
			return
		}
		leftEmpty, rightEmpty := left.Type == merkle.NodeTypeEmpty, right.Type == merkle.NodeTypeEmpty
		leafOnOtherSide := (leftEmpty && right.Type == merkle.NodeTypeLeaf) || (rightEmpty && left.Type == merkle.NodeTypeLeaf)
		if leafOnOtherSide {
			sawBadMiddle = true
		}
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if walkErr != nil {
		t.Fatalf("GetNode during invariant check: %v", walkErr)
	}
	if sawBadMiddle {
		t.Fatal("found a Middle node with an empty co-child of a leaf after delete")
	}

	// The two remaining keys are still reachable with their values intact.
	_, v1, _, err := tr.Get(ctx, big.NewInt(1))
	if err != nil || v1.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("Get(1) = (%v, %v), want (_, 2)", v1, err)
	}
	_, v2, _, err := tr.Get(ctx, big.NewInt(2))
	if err != nil || v2.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("Get(2) = (%v, %v), want (_, 3)", v2, err)
	}
}

func TestReachedMaxLevelOnDeepCollision(t *testing.T) {
	ctx := context.Background()
	const depth = 4
	tr, err := merkle.NewTree(ctx, memory.New(), testhash.New(), depth)
	if err != nil {
		t.Fatal(err)
	}
	// key0 and key1 diverge at bit 0, so they split cleanly at depth 0.
	// key2 shares all of key0's low `depth` bits (differs only at bit
	// `depth` and above, outside the tree's path window), so splitting
	// it away from key0 would require going deeper than maxLevels.
	key0 := big.NewInt(0)
	key1 := big.NewInt(1)
	key2 := big.NewInt(1 << depth)

	if err := tr.Add(ctx, key0, big.NewInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Add(ctx, key1, big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Add(ctx, key2, big.NewInt(3)); err != merkle.ErrReachedMaxLevel {
		t.Fatalf("colliding Add err = %v, want ErrReachedMaxLevel", err)
	}
}

func TestFieldOverflowRejected(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	tooBig := new(big.Int).Add(field.Modulus, big.NewInt(1))
	if err := tr.Add(ctx, tooBig, big.NewInt(1)); err != merkle.ErrFieldOverflow {
		t.Fatalf("Add(tooBig, 1) err = %v, want ErrFieldOverflow", err)
	}
	if _, err := tr.Update(ctx, tooBig, big.NewInt(1)); err != merkle.ErrFieldOverflow {
		t.Fatalf("Update(tooBig, 1) err = %v, want ErrFieldOverflow", err)
	}
}

func TestDeleteFieldOverflowRejected(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	tooBig := new(big.Int).Add(field.Modulus, big.NewInt(1))
	if err := tr.Delete(ctx, tooBig); err != merkle.ErrFieldOverflow {
		t.Fatalf("Delete(tooBig) err = %v, want ErrFieldOverflow", err)
	}
}

func TestNotWritableRejectsMutation(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	if err := tr.Add(ctx, big.NewInt(1), big.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	snap, err := tr.Snapshot(ctx, tr.Root())
	if err != nil {
		t.Fatal(err)
	}
	if err := snap.Add(ctx, big.NewInt(3), big.NewInt(4)); err != merkle.ErrNotWritable {
		t.Fatalf("Add on snapshot err = %v, want ErrNotWritable", err)
	}
}

func TestOrderIndependentRoot(t *testing.T) {
	ctx := context.Background()
	trA := newTestTree(t)
	trB := newTestTree(t)

	kvs := [][2]int64{{1, 2}, {2, 3}, {3, 4}, {17, 9}}
	for _, kv := range kvs {
		if err := trA.Add(ctx, big.NewInt(kv[0]), big.NewInt(kv[1])); err != nil {
			t.Fatal(err)
		}
	}
	for i := len(kvs) - 1; i >= 0; i-- {
		kv := kvs[i]
		if err := trB.Add(ctx, big.NewInt(kv[0]), big.NewInt(kv[1])); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(trA.Root().Hex(), trB.Root().Hex()); diff != "" {
		t.Errorf("root depends on insertion order (-A +B):\n%s", diff)
	}
}

func TestDumpLeavesAndCompact(t *testing.T) {
	ctx := context.Background()
	tr := newTestTree(t)
	kvs := [][2]int64{{1, 2}, {2, 3}, {5, 6}}
	for _, kv := range kvs {
		if err := tr.Add(ctx, big.NewInt(kv[0]), big.NewInt(kv[1])); err != nil {
			t.Fatal(err)
		}
	}
	leaves, err := tr.DumpLeaves(ctx, nil)
	if err != nil {
		t.Fatalf("DumpLeaves: %v", err)
	}
	if len(leaves) != len(kvs) {
		t.Fatalf("dumped %d leaves, want %d", len(leaves), len(kvs))
	}

	compacted, err := tr.Compact(ctx, memory.New())
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if diff := cmp.Diff(tr.Root().Hex(), compacted.Root().Hex()); diff != "" {
		t.Errorf("compacted root differs from source root (-want +got):\n%s", diff)
	}
}

func TestMockStorageGetRootNotFoundInitializesZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := merkle.NewMockStorage(ctrl)
	m.EXPECT().GetRoot(gomock.Any()).Return(nil, merkle.ErrNotFound)
	m.EXPECT().SetRoot(gomock.Any(), gomock.Any()).Return(nil)

	tr, err := merkle.NewTree(context.Background(), m, testhash.New(), maxLevels)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if !tr.Root().IsZero() {
		t.Fatalf("fresh tree root = %v, want zero", tr.Root())
	}
}
