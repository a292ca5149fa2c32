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

// Package etcdstore implements merkle.Storage on top of an etcd v3
// keyspace, for deployments that want the tree's root and nodes
// replicated via raft alongside other cluster configuration.
package etcdstore

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

const (
	rootKey    = "/smt/root"
	nodePrefix = "/smt/node/"
)

// Storage is an etcd-backed merkle.Storage.
type Storage struct {
	client *clientv3.Client
}

// New wraps an already-configured *clientv3.Client.
func New(client *clientv3.Client) *Storage {
	return &Storage{client: client}
}

func nodeKey(k *field.Hash) string {
	return nodePrefix + k.Hex()
}

// Get implements merkle.Storage.
func (s *Storage) Get(ctx context.Context, key *field.Hash) (*merkle.Node, error) {
	resp, err := s.client.Get(ctx, nodeKey(key))
	if err != nil {
		return nil, fmt.Errorf("etcdstore: get %s: %w", key.Hex(), err)
	}
	if len(resp.Kvs) == 0 {
		return nil, merkle.ErrNotFound
	}
	return merkle.UnmarshalNode(resp.Kvs[0].Value)
}

// Put implements merkle.Storage.
func (s *Storage) Put(ctx context.Context, key *field.Hash, n *merkle.Node) error {
	b, err := n.Marshal()
	if err != nil {
		return err
	}
	if _, err := s.client.Put(ctx, nodeKey(key), string(b)); err != nil {
		return fmt.Errorf("etcdstore: put %s: %w", key.Hex(), err)
	}
	return nil
}

// GetRoot implements merkle.Storage.
func (s *Storage) GetRoot(ctx context.Context) (*field.Hash, error) {
	resp, err := s.client.Get(ctx, rootKey)
	if err != nil {
		return nil, fmt.Errorf("etcdstore: get root: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, merkle.ErrNotFound
	}
	return field.NewHashFromBytes(resp.Kvs[0].Value)
}

// SetRoot implements merkle.Storage.
func (s *Storage) SetRoot(ctx context.Context, key *field.Hash) error {
	if _, err := s.client.Put(ctx, rootKey, string(key.Bytes())); err != nil {
		return fmt.Errorf("etcdstore: set root: %w", err)
	}
	return nil
}

// Watch streams root changes, for callers (e.g. a read replica) that
// want to follow the canonical tree's root without re-polling GetRoot.
// It closes the returned channel when ctx is cancelled.
func (s *Storage) Watch(ctx context.Context) <-chan *field.Hash {
	out := make(chan *field.Hash)
	watchCh := s.client.Watch(ctx, rootKey)
	go func() {
		defer close(out)
		for resp := range watchCh {
			for _, ev := range resp.Events {
				if ev.Kv == nil {
					continue
				}
				h, err := field.NewHashFromBytes(ev.Kv.Value)
				if err != nil {
					continue
				}
				select {
				case out <- h:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
