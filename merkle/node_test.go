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
	"math/big"
	"testing"

	"github.com/fieldtree/smt/field"
)

func TestMarshalLeafRoundTrip(t *testing.T) {
	k, err := field.NewHashFromBigInt(big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	v, err := field.NewHashFromBigInt(big.NewInt(2))
	if err != nil {
		t.Fatal(err)
	}
	n := NewNodeLeaf(k, v)
	b, err := n.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalNode(b)
	if err != nil {
		t.Fatalf("UnmarshalNode: %v", err)
	}
	if got.Type != NodeTypeLeaf || *got.Entry[0] != *k || *got.Entry[1] != *v {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMarshalMiddleRoundTrip(t *testing.T) {
	l, err := field.NewHashFromBigInt(big.NewInt(10))
	if err != nil {
		t.Fatal(err)
	}
	r, err := field.NewHashFromBigInt(big.NewInt(11))
	if err != nil {
		t.Fatal(err)
	}
	n := NewNodeMiddle(l, r)
	b, err := n.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalNode(b)
	if err != nil {
		t.Fatalf("UnmarshalNode: %v", err)
	}
	if got.Type != NodeTypeMiddle || *got.ChildL != *l || *got.ChildR != *r {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMarshalEmptyFails(t *testing.T) {
	if _, err := NewNodeEmpty().Marshal(); err != ErrInvalidNodeFound {
		t.Fatalf("Marshal(Empty) err = %v, want ErrInvalidNodeFound", err)
	}
}

func TestUnmarshalWrongLengthFails(t *testing.T) {
	if _, err := UnmarshalNode([]byte{1, 2, 3}); err != ErrInvalidNodeFound {
		t.Fatalf("UnmarshalNode(short) err = %v, want ErrInvalidNodeFound", err)
	}
}
