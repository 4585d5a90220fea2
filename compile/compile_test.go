// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"

	"github.com/assetgraph/bundler/bundle"
	"github.com/assetgraph/bundler/metrics"
)

// recordingTracer is a minimal trace.Tracer stub that counts how many spans
// it was asked to open, so tests can assert WithTracer actually reaches
// tracing.StartStage instead of the package-level default.
type recordingTracer struct {
	embedded.Tracer
	starts int
}

func (r *recordingTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.starts++
	return trace.ContextWithSpan(ctx, trace.SpanFromContext(ctx))
}

func threeEntriesSharingOneAsset(t *testing.T) (*bundle.AssetGraph, *bundle.BundleGraph) {
	t.Helper()
	ag := bundle.NewAssetGraph()
	big := ag.AddAsset(&bundle.Asset{ID: "big", Type: "js", Size: 60_000})

	target := bundle.Target{Env: bundle.Env{Context: "browser"}, Dist: "dist", PublicURL: "/"}
	for _, id := range []string{"a", "b", "c"} {
		asset := ag.AddAsset(&bundle.Asset{ID: id, Type: "js"})

		entryDep := ag.AddDependency(&bundle.Dependency{ID: "entry-" + id, IsEntry: true, Target: &target})
		ag.AddResolution(entryDep, asset)
		ag.AddEntryDependency(entryDep)

		importBig := ag.AddDependency(&bundle.Dependency{ID: id + "->big", Source: asset})
		ag.AddEdge(asset, importBig)
		ag.AddResolution(importBig, big)
	}

	return ag, bundle.NewBundleGraph(ag)
}

func TestRunEndToEnd(t *testing.T) {
	ag, bg := threeEntriesSharingOneAsset(t)

	c := New()
	require.NoError(t, c.Run(context.Background(), ag, bg))

	require.Len(t, bg.AllBundles(), 4, "three entry bundles plus one extracted shared bundle")
	require.Len(t, bg.AllBundleGroups(), 3)
}

func TestRunRespectsMinBundleSize(t *testing.T) {
	ag, bg := threeEntriesSharingOneAsset(t)

	c := New().WithMinBundleSize(1_000_000)
	require.NoError(t, c.Run(context.Background(), ag, bg))

	require.Len(t, bg.AllBundles(), 3, "below the size floor, the shared asset stays duplicated")
}

func TestRunRecordsStageMetrics(t *testing.T) {
	ag, bg := threeEntriesSharingOneAsset(t)

	m := metrics.New()
	c := New().WithMetrics(m)
	require.NoError(t, c.Run(context.Background(), ag, bg))

	all := m.All()
	for _, stage := range []string{
		metrics.StagePrimary,
		metrics.StageOptimizeHoist,
		metrics.StageOptimizeDedup,
		metrics.StageOptimizeExtract,
		metrics.StageOptimizeInternalize,
		metrics.StageOptimizePrune,
		metrics.StageWrap,
	} {
		_, ok := all["timer_"+stage+"_ns"]
		require.True(t, ok, "expected a recorded duration for stage %q", stage)
	}
}

func TestRunOpensOneSpanPerStageOnInjectedTracer(t *testing.T) {
	ag, bg := threeEntriesSharingOneAsset(t)

	tracer := &recordingTracer{}
	c := New().WithTracer(tracer)
	require.NoError(t, c.Run(context.Background(), ag, bg))

	require.Equal(t, 7, tracer.starts, "expected one span per pipeline stage")
}

func TestRunAbortsOnCanceledContext(t *testing.T) {
	ag, bg := threeEntriesSharingOneAsset(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New()
	err := c.Run(ctx, ag, bg)
	require.Error(t, err)
	require.Empty(t, bg.AllBundles(), "no stage should have run once the context was already canceled")
}
