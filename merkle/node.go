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
	"github.com/fieldtree/smt/field"
)

// NodeType tags the three node variants. Dispatch is always by tag; a
// vtable buys nothing here since the set is closed and small.
type NodeType byte

const (
	NodeTypeEmpty  NodeType = 0
	NodeTypeLeaf   NodeType = 1
	NodeTypeMiddle NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeEmpty:
		return "empty"
	case NodeTypeLeaf:
		return "leaf"
	case NodeTypeMiddle:
		return "middle"
	default:
		return "invalid"
	}
}

// Node is the tagged union persisted at every NodeKey. Only NodeTypeLeaf
// and NodeTypeMiddle are ever actually written to storage: Empty is never
// persisted, field.Zero stands in for it everywhere.
type Node struct {
	Type NodeType

	// ChildL, ChildR are set for NodeTypeMiddle.
	ChildL *field.Hash
	ChildR *field.Hash

	// Entry holds (k, v) for NodeTypeLeaf: Entry[0] is the key, Entry[1]
	// the value.
	Entry [2]*field.Hash

	key *field.Hash // memoized result of Key()
}

// NewNodeEmpty returns the (unpersisted) empty node.
func NewNodeEmpty() *Node {
	return &Node{Type: NodeTypeEmpty, key: &field.Zero}
}

// NewNodeLeaf builds a leaf node for (k, v). Its key will be H(k, v, 1).
func NewNodeLeaf(k, v *field.Hash) *Node {
	return &Node{Type: NodeTypeLeaf, Entry: [2]*field.Hash{k, v}}
}

// NewNodeMiddle builds an internal node over two children. Its key will
// be H(childL, childR).
func NewNodeMiddle(l, r *field.Hash) *Node {
	return &Node{Type: NodeTypeMiddle, ChildL: l, ChildR: r}
}

// Marshal encodes n for out-of-process storage backends (redis, sql,
// spanner, etcd) that can only deal in bytes. The layout is a one-byte
// type tag followed by two field.Size-byte fields: (ChildL, ChildR) for
// a middle node, (Entry[0], Entry[1]) for a leaf. Empty nodes are never
// persisted and have no encoding.
func (n *Node) Marshal() ([]byte, error) {
	switch n.Type {
	case NodeTypeLeaf:
		b := make([]byte, 1+2*field.Size)
		b[0] = byte(NodeTypeLeaf)
		copy(b[1:], n.Entry[0].Bytes())
		copy(b[1+field.Size:], n.Entry[1].Bytes())
		return b, nil
	case NodeTypeMiddle:
		b := make([]byte, 1+2*field.Size)
		b[0] = byte(NodeTypeMiddle)
		copy(b[1:], n.ChildL.Bytes())
		copy(b[1+field.Size:], n.ChildR.Bytes())
		return b, nil
	default:
		return nil, ErrInvalidNodeFound
	}
}

// UnmarshalNode decodes a Node previously produced by Node.Marshal.
func UnmarshalNode(b []byte) (*Node, error) {
	if len(b) != 1+2*field.Size {
		return nil, ErrInvalidNodeFound
	}
	a, err := field.NewHashFromBytes(b[1 : 1+field.Size])
	if err != nil {
		return nil, err
	}
	c, err := field.NewHashFromBytes(b[1+field.Size:])
	if err != nil {
		return nil, err
	}
	switch NodeType(b[0]) {
	case NodeTypeLeaf:
		return NewNodeLeaf(a, c), nil
	case NodeTypeMiddle:
		return NewNodeMiddle(a, c), nil
	default:
		return nil, ErrInvalidNodeFound
	}
}

// Key computes (and memoizes) this node's content-addressed NodeKey.
func (n *Node) Key(h Hasher) (*field.Hash, error) {
	if n.key != nil {
		return n.key, nil
	}
	switch n.Type {
	case NodeTypeEmpty:
		n.key = &field.Zero
	case NodeTypeLeaf:
		hv, err := h.Hash(n.Entry[0].BigInt(), n.Entry[1].BigInt(), leafDomainSeparator)
		if err != nil {
			return nil, err
		}
		k, err := field.NewHashFromBigInt(hv)
		if err != nil {
			return nil, err
		}
		n.key = k
	case NodeTypeMiddle:
		hv, err := h.Hash(n.ChildL.BigInt(), n.ChildR.BigInt())
		if err != nil {
			return nil, err
		}
		k, err := field.NewHashFromBigInt(hv)
		if err != nil {
			return nil, err
		}
		n.key = k
	default:
		return nil, ErrInvalidNodeFound
	}
	return n.key, nil
}
