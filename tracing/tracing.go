// Copyright 2021 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package tracing wraps the OpenTelemetry tracer used to emit one span per
// compile pipeline stage. Callers that never configure a tracer provider
// get otel's no-op tracer, so tracing has no cost unless the host wires up
// an exporter.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/assetgraph/bundler/compile"

// Tracer returns the tracer stages should use to record their execution.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartStage starts a span named after a compile pipeline stage on tracer,
// tagging it with the bundle graph size so slow runs can be correlated with
// graph shape after the fact. A nil tracer falls back to Tracer(), otel's
// global no-op-safe default.
func StartStage(ctx context.Context, tracer trace.Tracer, stage string, bundleCount int) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	return tracer.Start(ctx, stage, trace.WithAttributes(
		attribute.String("bundler.stage", stage),
		attribute.Int("bundler.bundle_count", bundleCount),
	))
}
