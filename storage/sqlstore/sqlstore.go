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

// Package sqlstore implements merkle.Storage over database/sql, for
// deployments that want the tree's nodes living in the same relational
// database as the rest of their schema. It supports both github.com/lib/pq
// (postgres) and github.com/go-sql-driver/mysql: pick the matching
// Dialect when constructing a Storage.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

// Dialect abstracts the two placeholder/upsert syntaxes this package
// supports. The zero value is Postgres.
type Dialect int

const (
	// Postgres targets github.com/lib/pq: $N placeholders, ON CONFLICT.
	Postgres Dialect = iota
	// MySQL targets github.com/go-sql-driver/mysql: ? placeholders,
	// ON DUPLICATE KEY UPDATE.
	MySQL
)

// Storage is a database/sql-backed merkle.Storage. A single row in
// smt_root holds the current root; every other persisted node lives in
// smt_nodes, keyed by its NodeKey hex encoding.
type Storage struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-open *sql.DB for the given dialect. Callers are
// responsible for running CreateTables (or an equivalent migration)
// once per database.
func New(db *sql.DB, dialect Dialect) *Storage {
	return &Storage{db: db, dialect: dialect}
}

// CreateTables issues the DDL this package needs. It is idempotent:
// both dialects accept IF NOT EXISTS on CREATE TABLE.
func (s *Storage) CreateTables(ctx context.Context) error {
	blobType := "BYTEA"
	if s.dialect == MySQL {
		blobType = "BLOB"
	}
	nodesDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS smt_nodes (
		node_key VARCHAR(64) PRIMARY KEY,
		value    %s NOT NULL
	)`, blobType)
	const rootsDDL = `CREATE TABLE IF NOT EXISTS smt_root (
		id        INT PRIMARY KEY,
		node_key  VARCHAR(64) NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, nodesDDL); err != nil {
		return fmt.Errorf("sqlstore: create smt_nodes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, rootsDDL); err != nil {
		return fmt.Errorf("sqlstore: create smt_root: %w", err)
	}
	return nil
}

// Get implements merkle.Storage.
func (s *Storage) Get(ctx context.Context, key *field.Hash) (*merkle.Node, error) {
	q := s.placeholder(`SELECT value FROM smt_nodes WHERE node_key = $1`)
	var b []byte
	err := s.db.QueryRowContext(ctx, q, key.Hex()).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get %s: %w", key.Hex(), err)
	}
	return merkle.UnmarshalNode(b)
}

// Put implements merkle.Storage.
func (s *Storage) Put(ctx context.Context, key *field.Hash, n *merkle.Node) error {
	b, err := n.Marshal()
	if err != nil {
		return err
	}
	// Nodes are content-addressed, so a conflicting insert always
	// carries the same bytes; an upsert keeps Put idempotent.
	var q string
	if s.dialect == Postgres {
		q = `INSERT INTO smt_nodes (node_key, value) VALUES ($1, $2)
		     ON CONFLICT (node_key) DO UPDATE SET value = EXCLUDED.value`
	} else {
		q = `INSERT INTO smt_nodes (node_key, value) VALUES (?, ?)
		     ON DUPLICATE KEY UPDATE value = VALUES(value)`
	}
	if _, err := s.db.ExecContext(ctx, q, key.Hex(), b); err != nil {
		return fmt.Errorf("sqlstore: put %s: %w", key.Hex(), err)
	}
	return nil
}

// GetRoot implements merkle.Storage.
func (s *Storage) GetRoot(ctx context.Context) (*field.Hash, error) {
	q := s.placeholder(`SELECT node_key FROM smt_root WHERE id = 0`)
	var hexKey string
	err := s.db.QueryRowContext(ctx, q).Scan(&hexKey)
	if err == sql.ErrNoRows {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get root: %w", err)
	}
	return field.HashFromHex(hexKey)
}

// SetRoot implements merkle.Storage.
func (s *Storage) SetRoot(ctx context.Context, key *field.Hash) error {
	var q string
	if s.dialect == Postgres {
		q = `INSERT INTO smt_root (id, node_key) VALUES (0, $1)
		     ON CONFLICT (id) DO UPDATE SET node_key = EXCLUDED.node_key`
	} else {
		q = `INSERT INTO smt_root (id, node_key) VALUES (0, ?)
		     ON DUPLICATE KEY UPDATE node_key = VALUES(node_key)`
	}
	if _, err := s.db.ExecContext(ctx, q, key.Hex()); err != nil {
		return fmt.Errorf("sqlstore: set root: %w", err)
	}
	return nil
}

// placeholder rewrites a query written with $1-style placeholders into
// MySQL's ? style when the dialect calls for it.
func (s *Storage) placeholder(pgQuery string) string {
	if s.dialect == Postgres {
		return pgQuery
	}
	out := make([]byte, 0, len(pgQuery))
	for i := 0; i < len(pgQuery); i++ {
		if pgQuery[i] == '$' && i+1 < len(pgQuery) && pgQuery[i+1] >= '1' && pgQuery[i+1] <= '9' {
			out = append(out, '?')
			i++
			continue
		}
		out = append(out, pgQuery[i])
	}
	return string(out)
}
