// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

import "fmt"

// AssetGraph is the read-only resolved module graph the bundling core
// consumes. It is built upstream by asset resolution and transformation
// (out of scope for this module, see internal/fixture for a JSON-driven
// stand-in used by tests and the CLI) and never mutated by any bundling
// pass, with the sole exception of per-Asset Meta entries.
type AssetGraph struct {
	assets        []*Asset
	dependencies  []*Dependency
	assetIndex    map[string]AssetID
	depIndex      map[string]DependencyID
	outgoing      map[AssetID][]DependencyID // declaration order
	resolutions   map[DependencyID][]AssetID // declaration order
	entryDeps     []DependencyID
}

// NewAssetGraph returns an empty, buildable AssetGraph.
func NewAssetGraph() *AssetGraph {
	return &AssetGraph{
		assetIndex:  map[string]AssetID{},
		depIndex:    map[string]DependencyID{},
		outgoing:    map[AssetID][]DependencyID{},
		resolutions: map[DependencyID][]AssetID{},
	}
}

// AddAsset interns an asset and returns its id, assigning one if the asset's
// ID string has not been seen before. Calling AddAsset again with the same
// ID returns the existing id without modifying the stored asset.
func (g *AssetGraph) AddAsset(a *Asset) AssetID {
	if id, ok := g.assetIndex[a.ID]; ok {
		return id
	}
	id := AssetID(len(g.assets))
	if a.Meta == nil {
		a.Meta = NewMeta()
	}
	g.assets = append(g.assets, a)
	g.assetIndex[a.ID] = id
	return id
}

// AddDependency interns a dependency and returns its id.
func (g *AssetGraph) AddDependency(d *Dependency) DependencyID {
	if id, ok := g.depIndex[d.ID]; ok {
		return id
	}
	id := DependencyID(len(g.dependencies))
	if d.Meta == nil {
		d.Meta = NewMeta()
	}
	g.dependencies = append(g.dependencies, d)
	g.depIndex[d.ID] = id
	return id
}

// AddEdge records that asset "from" declares dependency "dep", in
// declaration order. Pass invalidAssetID's zero value (AssetID(0) is a valid
// asset though) via AddEntryDependency for graph-root entries instead.
func (g *AssetGraph) AddEdge(from AssetID, dep DependencyID) {
	g.outgoing[from] = append(g.outgoing[from], dep)
}

// AddEntryDependency registers dep as a top-level entry point of the graph.
func (g *AssetGraph) AddEntryDependency(dep DependencyID) {
	g.entryDeps = append(g.entryDeps, dep)
}

// AddResolution records that dependency "dep" resolves to "asset", in
// resolution order (more than one resolved asset models a barrel/re-export
// style dependency).
func (g *AssetGraph) AddResolution(dep DependencyID, asset AssetID) {
	g.resolutions[dep] = append(g.resolutions[dep], asset)
}

// Asset returns the asset stored at id.
func (g *AssetGraph) Asset(id AssetID) *Asset {
	return g.assets[id]
}

// Dependency returns the dependency stored at id.
func (g *AssetGraph) Dependency(id DependencyID) *Dependency {
	return g.dependencies[id]
}

// AssetByStringID looks up an asset by its host-provided string id.
func (g *AssetGraph) AssetByStringID(id string) (AssetID, bool) {
	aid, ok := g.assetIndex[id]
	return aid, ok
}

// DependencyByStringID looks up a dependency by its host-provided string id.
func (g *AssetGraph) DependencyByStringID(id string) (DependencyID, bool) {
	did, ok := g.depIndex[id]
	return did, ok
}

// AssetCount returns the number of interned assets.
func (g *AssetGraph) AssetCount() int { return len(g.assets) }

// DependencyCount returns the number of interned dependencies.
func (g *AssetGraph) DependencyCount() int { return len(g.dependencies) }

// EntryDependencies returns the graph's declared entry points, in
// declaration order.
func (g *AssetGraph) EntryDependencies() []DependencyID {
	return g.entryDeps
}

// OutgoingDependencies returns the dependencies declared by asset, in
// declaration order. This is the order the primary bundler's preorder DFS
// must respect for determinism (§5).
func (g *AssetGraph) OutgoingDependencies(asset AssetID) []DependencyID {
	return g.outgoing[asset]
}

// Resolve returns the assets a dependency resolves to, in resolution order.
func (g *AssetGraph) Resolve(dep DependencyID) []AssetID {
	return g.resolutions[dep]
}

// String aids debugging/log output.
func (g *AssetGraph) String() string {
	return fmt.Sprintf("AssetGraph{%d assets, %d dependencies, %d entries}", len(g.assets), len(g.dependencies), len(g.entryDeps))
}
