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

	"golang.org/x/sync/errgroup"

	"github.com/fieldtree/smt/field"
)

// KV is one key/value pair for a batch operation.
type KV struct {
	K, V *big.Int
}

// BatchAdd validates every (k, v) pair's field containment concurrently
// and, only if all pass, commits them with sequential Add calls in the
// order given. Tree mutation is single-writer (Add takes no lock), so
// the concurrency here is confined to the cheap precheck; a validation
// failure anywhere in the batch aborts before any entry is committed.
func (t *Tree) BatchAdd(ctx context.Context, kvs []KV) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kv := range kvs {
		kv := kv
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return validateKV(kv.K, kv.V)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := t.Add(ctx, kv.K, kv.V); err != nil {
			return err
		}
	}
	return nil
}

// ProofResult pairs a GenerateProof outcome with the key it was
// requested for, so callers of BatchGenerateProofs can match results
// back up after concurrent completion.
type ProofResult struct {
	K     *big.Int
	Proof *Proof
	Value *big.Int
}

// BatchGenerateProofs generates membership/non-membership proofs for
// every key in keys concurrently against the single rootKey (t.Root()
// if nil). Unlike BatchAdd this is safe to parallelize outright:
// GenerateProof only reads already-persisted, immutable nodes.
func (t *Tree) BatchGenerateProofs(ctx context.Context, rootKey *field.Hash, keys []*big.Int) ([]ProofResult, error) {
	if rootKey == nil {
		rootKey = t.rootKey
	}
	results := make([]ProofResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			p, v, err := t.GenerateProof(gctx, k, rootKey)
			if err != nil {
				return err
			}
			results[i] = ProofResult{K: k, Proof: p, Value: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
