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

import "github.com/fieldtree/smt/field"

// getPath returns the low numLevels bits of k's little-endian encoding,
// least-significant bit first. path[i] selects the right child (true) or
// the left child (false) at depth i.
func getPath(numLevels int, k *field.Hash) []bool {
	b := k.Bytes()
	path := make([]bool, numLevels)
	for i := 0; i < numLevels; i++ {
		path[i] = field.TestBit(b, uint(i))
	}
	return path
}
