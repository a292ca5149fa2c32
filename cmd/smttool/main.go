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

// Command smttool drives a Sparse Merkle Tree from the command line:
// add/get/delete single entries, print the current root, generate a
// membership/non-membership proof, dump every leaf, or batch-load a CSV
// of key,value pairs against the memory, redis, postgres or mysql
// storage backend.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/golang/glog"
	goredis "github.com/go-redis/redis"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/fieldtree/smt/merkle"
	"github.com/fieldtree/smt/storage/memory"
	"github.com/fieldtree/smt/storage/redisstore"
	"github.com/fieldtree/smt/storage/sqlstore"
	"github.com/fieldtree/smt/testhash"
)

var (
	backend   = flag.String("backend", "memory", "storage backend: memory|redis|postgres|mysql")
	dsn       = flag.String("dsn", "", "connection string for redis/postgres/mysql backends")
	maxLevels = flag.Int("max_levels", 64, "fixed tree depth")
)

func openStorage(ctx context.Context) (merkle.Storage, error) {
	switch *backend {
	case "memory":
		return memory.New(), nil
	case "redis":
		opt, err := goredis.ParseURL(*dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing -dsn as a redis URL: %w", err)
		}
		return redisstore.New(goredis.NewClient(opt)), nil
	case "postgres":
		db, err := sql.Open("postgres", *dsn)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(db, sqlstore.Postgres)
		if err := s.CreateTables(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "mysql":
		db, err := sql.Open("mysql", *dsn)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(db, sqlstore.MySQL)
		if err := s.CreateTables(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown -backend %q", *backend)
	}
}

func parseBigInt(s string) (*big.Int, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a base-10 integer", s)
	}
	return x, nil
}

func run() error {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: smttool [flags] add|get|delete|root|prove|dump|batch ...")
	}
	ctx := context.Background()

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	tr, err := merkle.NewTree(ctx, db, testhash.New(), *maxLevels)
	if err != nil {
		return fmt.Errorf("opening tree: %w", err)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("usage: smttool add <key> <value>")
		}
		k, err := parseBigInt(rest[0])
		if err != nil {
			return err
		}
		v, err := parseBigInt(rest[1])
		if err != nil {
			return err
		}
		if err := tr.Add(ctx, k, v); err != nil {
			return err
		}
		glog.V(1).Infof("smttool: added (%s, %s), new root %s", k, v, tr.Root())
		fmt.Println(tr.Root().Hex())
		return nil

	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: smttool get <key>")
		}
		k, err := parseBigInt(rest[0])
		if err != nil {
			return err
		}
		foundKey, foundValue, _, err := tr.Get(ctx, k)
		if err != nil {
			return err
		}
		fmt.Printf("key=%s value=%s\n", foundKey, foundValue)
		return nil

	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: smttool delete <key>")
		}
		k, err := parseBigInt(rest[0])
		if err != nil {
			return err
		}
		if err := tr.Delete(ctx, k); err != nil {
			return err
		}
		fmt.Println(tr.Root().Hex())
		return nil

	case "root":
		if len(rest) != 0 {
			return fmt.Errorf("usage: smttool root")
		}
		fmt.Println(tr.Root().Hex())
		return nil

	case "prove":
		if len(rest) != 1 {
			return fmt.Errorf("usage: smttool prove <key>")
		}
		k, err := parseBigInt(rest[0])
		if err != nil {
			return err
		}
		proof, v, err := tr.GenerateProof(ctx, k, nil)
		if err != nil {
			return err
		}
		fmt.Printf("existence=%v depth=%d value=%s\n", proof.Existence, proof.Depth(), v)
		for i, sib := range proof.AllSiblings() {
			fmt.Printf("sibling[%d]=%s\n", i, sib.Hex())
		}
		if proof.NodeAux != nil {
			fmt.Printf("aux_key=%s aux_value=%s\n", proof.NodeAux.Key.Hex(), proof.NodeAux.Value.Hex())
		}
		return nil

	case "dump":
		leaves, err := tr.DumpLeaves(ctx, nil)
		if err != nil {
			return err
		}
		for _, kv := range leaves {
			fmt.Printf("%s,%s\n", kv[0], kv[1])
		}
		return nil

	case "batch":
		if len(rest) != 1 {
			return fmt.Errorf("usage: smttool batch <path-to-csv>")
		}
		return runBatch(ctx, tr, rest[0])

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runBatch reads "key,value" lines from path and commits them with
// Tree.BatchAdd, so the concurrent field-containment precheck from
// golang.org/x/sync/errgroup runs before any entry is persisted.
func runBatch(ctx context.Context, tr *merkle.Tree, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var kvs []merkle.KV
	for i, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("line %d: want \"key,value\", got %q", i+1, line)
		}
		k, err := parseBigInt(strings.TrimSpace(parts[0]))
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		v, err := parseBigInt(strings.TrimSpace(parts[1]))
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		kvs = append(kvs, merkle.KV{K: k, V: v})
	}
	if err := tr.BatchAdd(ctx, kvs); err != nil {
		return err
	}
	glog.Infof("smttool: batch-committed %d entries, new root %s", len(kvs), tr.Root())
	fmt.Println(tr.Root().Hex())
	return nil
}

func main() {
	defer glog.Flush()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "smttool:", err)
		os.Exit(1)
	}
}
