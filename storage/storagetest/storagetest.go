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

// Package storagetest is a conformance suite every merkle.Storage
// implementation is expected to pass. Backend packages call Run from
// their own _test.go file, each supplying a fresh, empty instance.
package storagetest

import (
	"context"
	"math/big"
	"testing"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

// Run exercises newStorage() against the merkle.Storage contract. Each
// subtest calls newStorage again, so implementations backed by shared
// external state (a real Redis/Postgres instance) should give newStorage
// a fresh keyspace/table per call, or callers should wipe it between
// subtests via t.Cleanup in their own wrapper.
func Run(t *testing.T, newStorage func(t *testing.T) merkle.Storage) {
	t.Helper()

	t.Run("GetRootNotFoundBeforeAnySet", func(t *testing.T) {
		s := newStorage(t)
		if _, err := s.GetRoot(context.Background()); err != merkle.ErrNotFound {
			t.Fatalf("GetRoot on fresh storage err = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		k, err := field.NewHashFromBigInt(big.NewInt(1))
		if err != nil {
			t.Fatal(err)
		}
		v, err := field.NewHashFromBigInt(big.NewInt(2))
		if err != nil {
			t.Fatal(err)
		}
		n := merkle.NewNodeLeaf(k, v)
		if err := s.Put(ctx, k, n); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Type != merkle.NodeTypeLeaf || *got.Entry[0] != *k || *got.Entry[1] != *v {
			t.Fatalf("Get returned %+v, want the node just Put", got)
		}
	})

	t.Run("GetMissingKeyFails", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		missing, err := field.NewHashFromBigInt(big.NewInt(99))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, missing); err != merkle.ErrNotFound {
			t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetRootThenGetRoot", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		root, err := field.NewHashFromBigInt(big.NewInt(42))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SetRoot(ctx, root); err != nil {
			t.Fatalf("SetRoot: %v", err)
		}
		got, err := s.GetRoot(ctx)
		if err != nil {
			t.Fatalf("GetRoot: %v", err)
		}
		if *got != *root {
			t.Fatalf("GetRoot = %v, want %v", got, root)
		}
	})

	t.Run("PutIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		k, err := field.NewHashFromBigInt(big.NewInt(7))
		if err != nil {
			t.Fatal(err)
		}
		v, err := field.NewHashFromBigInt(big.NewInt(8))
		if err != nil {
			t.Fatal(err)
		}
		n := merkle.NewNodeLeaf(k, v)
		if err := s.Put(ctx, k, n); err != nil {
			t.Fatalf("first Put: %v", err)
		}
		if err := s.Put(ctx, k, n); err != nil {
			t.Fatalf("repeat Put: %v", err)
		}
		got, err := s.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Type != merkle.NodeTypeLeaf || *got.Entry[0] != *k || *got.Entry[1] != *v {
			t.Fatalf("Get returned %+v, want the node just Put", got)
		}
	})
}
