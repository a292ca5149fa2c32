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

// Package testhash provides a non-Poseidon stand-in for merkle.Hasher,
// for use in tests and as the smttool CLI default when no production
// Poseidon implementation is wired in. It is NOT suitable for production
// use: a real deployment must inject a properly domain-separated
// Poseidon permutation over the scalar field.
package testhash

import (
	"math/big"

	"golang.org/x/crypto/blake2b"

	"github.com/fieldtree/smt/field"
)

// Hasher combines field elements by blake2b-hashing their big-endian
// byte encodings and reducing the digest modulo the scalar field.
type Hasher struct{}

// New returns a ready-to-use stand-in Hasher.
func New() Hasher { return Hasher{} }

// Hash implements merkle.Hasher.
func (Hasher) Hash(inputs ...*big.Int) (*big.Int, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if !field.InField(in) {
			return nil, field.ErrOutOfField
		}
		b := make([]byte, field.Size)
		in.FillBytes(b)
		if _, err := h.Write(b); err != nil {
			return nil, err
		}
	}
	digest := h.Sum(nil)
	out := new(big.Int).SetBytes(digest)
	out.Mod(out, field.Modulus)
	return out, nil
}
