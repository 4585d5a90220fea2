// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package bundle implements the asset graph and bundle graph data model, and
// the in-memory MutableBundleGraph façade the bundling passes operate on.
package bundle

// AssetID addresses an Asset within an AssetGraph.
type AssetID int

// DependencyID addresses a Dependency within an AssetGraph.
type DependencyID int

// BundleID addresses a Bundle within a BundleGraph. Bundle identity is
// assigned by the graph when the bundle is created; it is stable for the
// lifetime of the graph.
type BundleID int

// GroupID addresses a BundleGroup within a BundleGraph.
type GroupID int

// invalidAssetID is never assigned to a real asset; it is returned alongside
// false when there is no resolution or main entry to report.
const invalidAssetID AssetID = -1
