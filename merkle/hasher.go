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

import "math/big"

// Hasher is the field-native hash primitive the tree delegates to for
// combining children and deriving leaf keys. A real instance is expected
// to be a domain-separated Poseidon permutation over the scalar field;
// the tree itself never hashes raw bytes, only field elements.
//
// Implementations MUST be deterministic, and the same Hasher MUST be used
// across every read and write of a given tree: mixing hashers invalidates
// every invariant in this package.
type Hasher interface {
	// Hash combines 2 inputs (internal nodes) or 3 inputs (leaves, the
	// third always the constant 1) into a single field element.
	Hash(inputs ...*big.Int) (*big.Int, error)
}

// leafDomainSeparator is hashed as the third input of every leaf key so
// that a leaf's key can never collide with an internal node's key.
var leafDomainSeparator = big.NewInt(1)
