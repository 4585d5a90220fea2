// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package compile implements the fluent-builder orchestrator that drives
// the three bundling passes over an asset graph.
package compile

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/assetgraph/bundler/bundle"
	"github.com/assetgraph/bundler/internal/optimize"
	"github.com/assetgraph/bundler/internal/primary"
	"github.com/assetgraph/bundler/internal/wrap"
	"github.com/assetgraph/bundler/logging"
	"github.com/assetgraph/bundler/metrics"
	"github.com/assetgraph/bundler/tracing"
)

// Compiler runs the primary, optimizing and wrap passes over an asset
// graph in sequence, in the style of a build-tool compiler pipeline:
// construct with New(), configure with With* methods, then invoke Run.
type Compiler struct {
	maxParallelRequests int
	minBundleSize       uint64
	minBundles          int

	logger  logging.Logger
	metrics metrics.Metrics
	tracer  trace.Tracer
}

// New returns a compiler configured with the optimizer's default budgets
// (§6). Tracing defaults to tracing.Tracer(), the tracer of otel's global
// provider, which is a no-op until the host process registers a provider.
func New() *Compiler {
	return &Compiler{
		maxParallelRequests: optimize.DefaultMaxParallelRequests,
		minBundleSize:       optimize.DefaultMinBundleSize,
		minBundles:          optimize.DefaultMinBundles,
		logger:              logging.NewNoOpLogger(),
		metrics:             metrics.New(),
		tracer:              tracing.Tracer(),
	}
}

// WithMaxParallelRequests sets the maximum number of bundles a single
// bundle group may hold once an optimization has finished considering it.
func (c *Compiler) WithMaxParallelRequests(n int) *Compiler {
	c.maxParallelRequests = n
	return c
}

// WithMinBundleSize sets the minimum total size (bytes) a shared-bundle
// candidate must reach to be extracted.
func (c *Compiler) WithMinBundleSize(n uint64) *Compiler {
	c.minBundleSize = n
	return c
}

// WithMinBundles sets the sharing threshold for shared-bundle extraction:
// an asset becomes a candidate only when more than n distinct bundles
// contain it.
func (c *Compiler) WithMinBundles(n int) *Compiler {
	c.minBundles = n
	return c
}

// WithLogger sets the logger stages report their entry/exit and counts to.
func (c *Compiler) WithLogger(l logging.Logger) *Compiler {
	c.logger = l
	return c
}

// WithMetrics sets the metrics provider stage durations and counters are
// recorded against.
func (c *Compiler) WithMetrics(m metrics.Metrics) *Compiler {
	c.metrics = m
	return c
}

// WithTracer sets the tracer stages open their spans against. Unset, a
// Compiler uses tracing.Tracer() (see New), so spans are only recorded once
// a tracer provider is registered globally or a tracer is passed here.
func (c *Compiler) WithTracer(t trace.Tracer) *Compiler {
	c.tracer = t
	return c
}

// Run executes the three-stage pipeline (primary, the optimizer's five
// steps, wrap) against bundleGraph, which must be empty. ctx is checked
// between stages (never mid-stage, §5): a canceled context aborts a
// queued run before its next stage starts.
func (c *Compiler) Run(ctx context.Context, assetGraph *bundle.AssetGraph, bundleGraph bundle.MutableBundleGraph) error {
	cfg := c.optimizeConfig()
	var touchedGroups []bundle.GroupID

	stages := []struct {
		name string
		run  func() error
	}{
		{metrics.StagePrimary, func() error { return primary.Run(assetGraph, bundleGraph) }},
		{metrics.StageOptimizeHoist, func() error {
			optimize.HoistSingleOrigin(bundleGraph, cfg)
			return nil
		}},
		{metrics.StageOptimizeDedup, func() error {
			n := optimize.DeduplicateAncestors(bundleGraph)
			c.metrics.Counter(metrics.AssetsDeduplicated).Add(uint64(n))
			return nil
		}},
		{metrics.StageOptimizeExtract, func() error {
			n := optimize.ExtractSharedBundles(bundleGraph, cfg)
			c.metrics.Counter(metrics.SharedBundlesExtracted).Add(uint64(n))
			c.metrics.Counter(metrics.BundlesCreated).Add(uint64(n))
			return nil
		}},
		{metrics.StageOptimizeInternalize, func() error {
			var err error
			var n int
			touchedGroups, n, err = optimize.InternalizeAsync(bundleGraph)
			c.metrics.Counter(metrics.AsyncDependenciesInternalized).Add(uint64(n))
			return err
		}},
		{metrics.StageOptimizePrune, func() error {
			n := optimize.PruneOrphanGroups(bundleGraph, touchedGroups)
			c.metrics.Counter(metrics.BundleGroupsRemoved).Add(uint64(n))
			return nil
		}},
		{metrics.StageWrap, func() error {
			wrap.Run(bundleGraph)
			return nil
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("compile: %w", err)
		}

		c.logger.Debug("stage %q starting", stage.name)
		timer := c.metrics.Timer(stage.name)
		timer.Start()
		wallStart := time.Now()

		_, span := tracing.StartStage(ctx, c.tracer, stage.name, len(bundleGraph.AllBundles()))
		err := stage.run()
		span.End()

		timer.Stop()
		metrics.StageDuration.WithLabelValues(stage.name).Observe(time.Since(wallStart).Seconds())
		if err != nil {
			c.logger.Error("stage %q failed: %v", stage.name, err)
			return fmt.Errorf("compile: stage %q: %w", stage.name, err)
		}
		c.logger.Debug("stage %q finished with %d bundles, %d bundle groups",
			stage.name, len(bundleGraph.AllBundles()), len(bundleGraph.AllBundleGroups()))
	}
	metrics.BundleCount.Set(float64(len(bundleGraph.AllBundles())))
	return nil
}

func (c *Compiler) optimizeConfig() optimize.Config {
	return optimize.Config{
		MaxParallelRequests: c.maxParallelRequests,
		MinBundleSize:       c.minBundleSize,
		MinBundles:          c.minBundles,
	}
}
