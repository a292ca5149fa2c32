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

// Package metrics instruments merkle.Tree operations with Prometheus
// counters and histograms, for deployments that scrape a /metrics
// endpoint rather than parse glog output.
package metrics

import (
	"context"
	"math/big"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldtree/smt/field"
	"github.com/fieldtree/smt/merkle"
)

// Collectors groups the metrics this package registers. Callers
// register it once against a prometheus.Registerer of their choosing.
type Collectors struct {
	ops        *prometheus.CounterVec
	opErrors   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	proofDepth prometheus.Histogram
}

// NewCollectors builds and registers a fresh Collectors.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smt",
			Name:      "tree_operations_total",
			Help:      "Number of Tree operations, by op.",
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smt",
			Name:      "tree_operation_errors_total",
			Help:      "Number of Tree operations that returned an error, by op.",
		}, []string{"op"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smt",
			Name:      "tree_operation_duration_seconds",
			Help:      "Tree operation latency, by op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		proofDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smt",
			Name:      "proof_depth",
			Help:      "Depth (number of siblings) of generated proofs.",
			Buckets:   prometheus.LinearBuckets(0, 8, 32),
		}),
	}
	reg.MustRegister(c.ops, c.opErrors, c.opDuration, c.proofDepth)
	return c
}

func (c *Collectors) observe(op string, start time.Time, err error) {
	c.ops.WithLabelValues(op).Inc()
	c.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.opErrors.WithLabelValues(op).Inc()
	}
}

// InstrumentedTree wraps a *merkle.Tree, recording Collectors metrics
// around each mutating or proof-generating call before delegating to
// the underlying tree.
type InstrumentedTree struct {
	*merkle.Tree
	c *Collectors
}

// Wrap returns an InstrumentedTree delegating to t.
func Wrap(t *merkle.Tree, c *Collectors) *InstrumentedTree {
	return &InstrumentedTree{Tree: t, c: c}
}

// Add instruments merkle.Tree.Add.
func (it *InstrumentedTree) Add(ctx context.Context, k, v *big.Int) error {
	start := time.Now()
	err := it.Tree.Add(ctx, k, v)
	it.c.observe("add", start, err)
	return err
}

// Update instruments merkle.Tree.Update.
func (it *InstrumentedTree) Update(ctx context.Context, k, v *big.Int) (*merkle.CircomProcessorProof, error) {
	start := time.Now()
	cp, err := it.Tree.Update(ctx, k, v)
	it.c.observe("update", start, err)
	return cp, err
}

// Delete instruments merkle.Tree.Delete.
func (it *InstrumentedTree) Delete(ctx context.Context, k *big.Int) error {
	start := time.Now()
	err := it.Tree.Delete(ctx, k)
	it.c.observe("delete", start, err)
	return err
}

// GenerateProof instruments merkle.Tree.GenerateProof and records the
// resulting proof's depth.
func (it *InstrumentedTree) GenerateProof(ctx context.Context, k *big.Int, rootKey *field.Hash) (*merkle.Proof, *big.Int, error) {
	start := time.Now()
	p, v, err := it.Tree.GenerateProof(ctx, k, rootKey)
	it.c.observe("generate_proof", start, err)
	if err == nil {
		it.c.proofDepth.Observe(float64(p.Depth()))
	}
	return p, v, err
}

// Snapshot captures the current value of every registered metric as a
// slice of client_model family protos, for tests and for handlers that
// want to serve a point-in-time snapshot without going through the
// standard /metrics text exposition.
func (c *Collectors) Snapshot() ([]*dto.MetricFamily, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c.ops); err != nil {
		return nil, err
	}
	if err := reg.Register(c.opErrors); err != nil {
		return nil, err
	}
	if err := reg.Register(c.opDuration); err != nil {
		return nil, err
	}
	if err := reg.Register(c.proofDepth); err != nil {
		return nil, err
	}
	return reg.Gather()
}
