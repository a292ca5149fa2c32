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

// Package redisstore implements merkle.Storage on top of a Redis
// keyspace, for deployments that already run Redis as a shared cache in
// front of a slower source of truth.
package redisstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

// rootKey is the single Redis key holding the current tree root. Node
// keys live under nodePrefix so the two namespaces never collide.
const (
	rootKey    = "smt:root"
	nodePrefix = "smt:node:"
)

// Storage is a Redis-backed merkle.Storage. It does not pipeline or
// cache locally: every call is one round trip.
type Storage struct {
	client *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func nodeKey(k *field.Hash) string {
	return nodePrefix + k.Hex()
}

// Get implements merkle.Storage.
func (s *Storage) Get(_ context.Context, key *field.Hash) (*merkle.Node, error) {
	b, err := s.client.Get(nodeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key.Hex(), err)
	}
	return merkle.UnmarshalNode(b)
}

// Put implements merkle.Storage.
func (s *Storage) Put(_ context.Context, key *field.Hash, n *merkle.Node) error {
	b, err := n.Marshal()
	if err != nil {
		return err
	}
	if err := s.client.Set(nodeKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: put %s: %w", key.Hex(), err)
	}
	return nil
}

// GetRoot implements merkle.Storage.
func (s *Storage) GetRoot(_ context.Context) (*field.Hash, error) {
	b, err := s.client.Get(rootKey).Bytes()
	if err == redis.Nil {
		return nil, merkle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get root: %w", err)
	}
	return field.NewHashFromBytes(b)
}

// SetRoot implements merkle.Storage.
func (s *Storage) SetRoot(_ context.Context, key *field.Hash) error {
	if err := s.client.Set(rootKey, key.Bytes(), 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set root: %w", err)
	}
	return nil
}
