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

// Package spannerstore implements merkle.Storage on top of Cloud
// Spanner, for deployments that already keep their source-of-truth
// tables there and want the tree's nodes colocated for strong
// consistency with the rest of their schema.
package spannerstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

const (
	nodesTable = "SMTNodes"
	rootsTable = "SMTRoot"
	rootRowID  = int64(0)
)

// Storage is a Cloud Spanner-backed merkle.Storage.
type Storage struct {
	client *spanner.Client
}

// New opens a Storage against the given Spanner database, e.g.
// "projects/p/instances/i/databases/d", using the supplied client
// options for credentials (option.WithCredentialsFile, etc).
func New(ctx context.Context, db string, opts ...option.ClientOption) (*Storage, error) {
	client, err := spanner.NewClient(ctx, db, opts...)
	if err != nil {
		return nil, fmt.Errorf("spannerstore: new client: %w", err)
	}
	return &Storage{client: client}, nil
}

// Close releases the underlying Spanner client.
func (s *Storage) Close() {
	s.client.Close()
}

// Get implements merkle.Storage.
func (s *Storage) Get(ctx context.Context, key *field.Hash) (*merkle.Node, error) {
	row, err := s.client.Single().ReadRow(ctx, nodesTable,
		spanner.Key{key.Hex()}, []string{"Value"})
	if spanner.ErrCode(err) == codes.NotFound {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("spannerstore: get %s: %w", key.Hex(), err)
	}
	var b []byte
	if err := row.Column(0, &b); err != nil {
		return nil, fmt.Errorf("spannerstore: decode %s: %w", key.Hex(), err)
	}
	return merkle.UnmarshalNode(b)
}

// Put implements merkle.Storage.
func (s *Storage) Put(ctx context.Context, key *field.Hash, n *merkle.Node) error {
	b, err := n.Marshal()
	if err != nil {
		return err
	}
	m := spanner.InsertOrUpdate(nodesTable, []string{"NodeKey", "Value"},
		[]interface{}{key.Hex(), b})
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{m}); err != nil {
		return fmt.Errorf("spannerstore: put %s: %w", key.Hex(), err)
	}
	return nil
}

// GetRoot implements merkle.Storage.
func (s *Storage) GetRoot(ctx context.Context) (*field.Hash, error) {
	row, err := s.client.Single().ReadRow(ctx, rootsTable,
		spanner.Key{rootRowID}, []string{"NodeKey"})
	if spanner.ErrCode(err) == codes.NotFound {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("spannerstore: get root: %w", err)
	}
	var hexKey string
	if err := row.Column(0, &hexKey); err != nil {
		return nil, fmt.Errorf("spannerstore: decode root: %w", err)
	}
	return field.HashFromHex(hexKey)
}

// SetRoot implements merkle.Storage.
func (s *Storage) SetRoot(ctx context.Context, key *field.Hash) error {
	m := spanner.InsertOrUpdate(rootsTable, []string{"ID", "NodeKey"},
		[]interface{}{rootRowID, key.Hex()})
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{m}); err != nil {
		return fmt.Errorf("spannerstore: set root: %w", err)
	}
	return nil
}

// Len returns the number of persisted nodes, for diagnostics. It is the
// one query in this package that goes through Spanner's iterator-based
// Query path rather than a keyed ReadRow.
func (s *Storage) Len(ctx context.Context) (int64, error) {
	stmt := spanner.Statement{SQL: `SELECT COUNT(*) FROM ` + nodesTable}
	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()
	row, err := iter.Next()
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("spannerstore: count nodes: %w", err)
	}
	var n int64
	if err := row.Column(0, &n); err != nil {
		return 0, err
	}
	return n, nil
}
