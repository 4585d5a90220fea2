// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

import (
	"github.com/assetgraph/bundler/util"
)

// ExternalResolutionKind distinguishes the two things an external
// dependency resolution can point to.
type ExternalResolutionKind int

const (
	// ExternalAsset means the dependency resolves, outside of the current
	// bundle, directly to an asset (an asset-reference edge).
	ExternalAsset ExternalResolutionKind = iota
	// ExternalBundleGroup means the dependency resolves to a bundle group
	// loaded at runtime (an async import's target).
	ExternalBundleGroup
)

// ExternalResolution is the result of resolveExternalDependency.
type ExternalResolution struct {
	Kind  ExternalResolutionKind
	Group GroupID
	Asset AssetID
}

// CreateBundleOptions configures a new bundle. EntryAsset is optional;
// bundles created without one (e.g. shared bundles) must set UniqueKey
// instead so the bundle has a stable identity.
type CreateBundleOptions struct {
	EntryAsset   AssetID
	HasEntry     bool
	UniqueKey    string
	Type         string
	Env          Env
	Target       Target
	IsEntry      bool
	IsInline     bool
	IsSplittable bool
}

// MutableBundleGraph is the façade the three bundling passes operate
// through (§6). BundleGraph is the only implementation in this module; the
// interface exists so passes can be tested against fakes and so the
// traversal/query/mutation surface is documented in one place.
type MutableBundleGraph interface {
	Traverse(v *Visitor)
	TraverseBundles(v *BundleVisitor)
	TraverseContents(bundle BundleID, v *ContentsVisitor)

	GetDependencyAssets(dep DependencyID) []AssetID
	GetDependencyResolution(dep DependencyID, bundle BundleID) (AssetID, bool)
	ResolveExternalDependency(dep DependencyID) (ExternalResolution, error)
	FindBundlesWithAsset(asset AssetID) []BundleID
	FindBundlesWithDependency(dep DependencyID) []BundleID
	GetBundleGroupsContainingBundle(bundle BundleID) []GroupID
	GetBundlesInBundleGroup(group GroupID) []BundleID
	GetParentBundlesOfBundleGroup(group GroupID) []BundleID
	GetSiblingBundles(bundle BundleID) []BundleID
	IsAssetInAncestorBundles(bundle BundleID, asset AssetID) bool
	HasAsset(bundle BundleID, asset AssetID) bool
	GetMainEntry(bundle BundleID) (AssetID, bool)
	GetTotalSize(asset AssetID) uint64

	CreateBundleGroup(dep DependencyID, target Target) GroupID
	CreateBundle(opts CreateBundleOptions) BundleID
	AddBundleToBundleGroup(bundle BundleID, group GroupID)
	AddAssetGraphToBundle(asset AssetID, bundle BundleID)
	RemoveAssetGraphFromBundle(asset AssetID, bundle BundleID)
	CreateAssetReference(dep DependencyID, asset AssetID)
	InternalizeAsyncDependency(bundle BundleID, dep DependencyID)
	RemoveBundleGroup(group GroupID)

	Bundle(id BundleID) *Bundle
	BundleGroup(id GroupID) *BundleGroup
	AssetGraph() *AssetGraph
	AllBundles() []BundleID
	AllBundleGroups() []GroupID
}

// BundleGraph is the in-memory arena backing MutableBundleGraph. Bundles,
// groups, membership and containment are all addressed by small integer
// ids (§3.1) rather than pointers, so the graph can be copied/diffed
// cheaply and has no reference cycles.
type BundleGraph struct {
	ag *AssetGraph

	bundles      map[BundleID]*Bundle
	nextBundleID BundleID
	bundleOrder  []BundleID

	groups      map[GroupID]*BundleGroup
	nextGroupID GroupID
	groupOrder  []GroupID

	groupByOpener map[DependencyID]GroupID

	bundleGroups map[BundleID]map[GroupID]bool
	groupBundles map[GroupID][]BundleID

	bundleAssets map[BundleID]map[AssetID]bool
	assetBundles map[AssetID]map[BundleID]bool
	bundleRoots  map[BundleID][]AssetID

	assetRefs    map[DependencyID]AssetID
	internalized map[BundleID]map[DependencyID]bool
}

// NewBundleGraph returns an empty BundleGraph over ag, ready for the
// primary bundler to populate.
func NewBundleGraph(ag *AssetGraph) *BundleGraph {
	return &BundleGraph{
		ag:            ag,
		bundles:       map[BundleID]*Bundle{},
		groups:        map[GroupID]*BundleGroup{},
		groupByOpener: map[DependencyID]GroupID{},
		bundleGroups:  map[BundleID]map[GroupID]bool{},
		groupBundles:  map[GroupID][]BundleID{},
		bundleAssets:  map[BundleID]map[AssetID]bool{},
		assetBundles:  map[AssetID]map[BundleID]bool{},
		bundleRoots:   map[BundleID][]AssetID{},
		assetRefs:     map[DependencyID]AssetID{},
		internalized:  map[BundleID]map[DependencyID]bool{},
	}
}

// AssetGraph returns the read-only asset graph this bundle graph was built
// from.
func (g *BundleGraph) AssetGraph() *AssetGraph { return g.ag }

// Bundle returns the bundle stored at id, or nil if id is unknown.
func (g *BundleGraph) Bundle(id BundleID) *Bundle { return g.bundles[id] }

// BundleGroup returns the bundle group stored at id, or nil if id is
// unknown.
func (g *BundleGraph) BundleGroup(id GroupID) *BundleGroup { return g.groups[id] }

// AllBundles returns every bundle id, in creation order.
func (g *BundleGraph) AllBundles() []BundleID {
	out := make([]BundleID, len(g.bundleOrder))
	copy(out, g.bundleOrder)
	return out
}

// AllBundleGroups returns every bundle group id, in creation order.
func (g *BundleGraph) AllBundleGroups() []GroupID {
	out := make([]GroupID, len(g.groupOrder))
	copy(out, g.groupOrder)
	return out
}

// CreateBundleGroup creates a new, empty bundle group opened by dep.
func (g *BundleGraph) CreateBundleGroup(dep DependencyID, target Target) GroupID {
	id := g.nextGroupID
	g.nextGroupID++
	g.groups[id] = &BundleGroup{ID: id, OpenedBy: dep, HasOpener: true, Target: target}
	g.groupOrder = append(g.groupOrder, id)
	g.groupByOpener[dep] = id
	return id
}

// CreateBundle creates a new bundle from opts.
func (g *BundleGraph) CreateBundle(opts CreateBundleOptions) BundleID {
	id := g.nextBundleID
	g.nextBundleID++
	g.bundles[id] = &Bundle{
		ID:           id,
		Type:         opts.Type,
		Env:          opts.Env,
		Target:       opts.Target,
		IsEntry:      opts.IsEntry,
		IsInline:     opts.IsInline,
		IsSplittable: opts.IsSplittable,
		UniqueKey:    opts.UniqueKey,
	}
	g.bundleOrder = append(g.bundleOrder, id)
	g.bundleAssets[id] = map[AssetID]bool{}
	if opts.HasEntry {
		g.bundleRoots[id] = []AssetID{opts.EntryAsset}
	}
	return id
}

// AddBundleToBundleGroup records that bundle is a member of group.
func (g *BundleGraph) AddBundleToBundleGroup(bundle BundleID, group GroupID) {
	if g.bundleGroups[bundle] == nil {
		g.bundleGroups[bundle] = map[GroupID]bool{}
	}
	if g.bundleGroups[bundle][group] {
		return
	}
	g.bundleGroups[bundle][group] = true
	g.groupBundles[group] = append(g.groupBundles[group], bundle)
}

// assetReachableSameBundle returns every asset reachable from root that
// would belong to the same bundle as root: it follows only synchronous,
// non-entry dependencies, and only into assets that share root's type
// (different-typed resolutions are cross-bundle asset references, §4.1).
func (g *BundleGraph) assetReachableSameBundle(root AssetID, bundleType string) map[AssetID]bool {
	visited := map[AssetID]bool{}
	var visit func(a AssetID)
	visit = func(a AssetID) {
		if visited[a] {
			return
		}
		visited[a] = true
		for _, depID := range g.ag.OutgoingDependencies(a) {
			dep := g.ag.Dependency(depID)
			if dep.IsEntry || dep.IsAsync {
				continue
			}
			for _, ra := range g.ag.Resolve(depID) {
				asset := g.ag.Asset(ra)
				if asset.Type != bundleType {
					continue
				}
				visit(ra)
			}
		}
	}
	visit(root)
	return visited
}

// AddAssetGraphToBundle attaches asset, and every same-bundle asset
// reachable from it, to bundle, and records asset as an additional root.
func (g *BundleGraph) AddAssetGraphToBundle(asset AssetID, bundle BundleID) {
	b := g.bundles[bundle]
	closure := g.assetReachableSameBundle(asset, b.Type)
	set := g.bundleAssets[bundle]
	for a := range closure {
		if set[a] {
			continue
		}
		set[a] = true
		if g.assetBundles[a] == nil {
			g.assetBundles[a] = map[BundleID]bool{}
		}
		g.assetBundles[a][bundle] = true
	}
	for _, r := range g.bundleRoots[bundle] {
		if r == asset {
			return
		}
	}
	g.bundleRoots[bundle] = append(g.bundleRoots[bundle], asset)
}

// RemoveAssetGraphFromBundle removes asset as a root of bundle, along with
// every asset reachable only from that root (assets still reachable from a
// remaining root are kept, since they're still legitimately part of the
// bundle).
func (g *BundleGraph) RemoveAssetGraphFromBundle(asset AssetID, bundle BundleID) {
	b := g.bundles[bundle]

	roots := g.bundleRoots[bundle]
	var remaining []AssetID
	removedRoot := false
	for _, r := range roots {
		if !removedRoot && r == asset {
			removedRoot = true
			continue
		}
		remaining = append(remaining, r)
	}
	g.bundleRoots[bundle] = remaining

	toRemove := g.assetReachableSameBundle(asset, b.Type)
	keep := map[AssetID]bool{}
	for _, r := range remaining {
		for a := range g.assetReachableSameBundle(r, b.Type) {
			keep[a] = true
		}
	}

	set := g.bundleAssets[bundle]
	for a := range toRemove {
		if keep[a] {
			continue
		}
		delete(set, a)
		if bs := g.assetBundles[a]; bs != nil {
			delete(bs, bundle)
		}
	}
}

// HasAsset reports whether bundle currently contains asset.
func (g *BundleGraph) HasAsset(bundle BundleID, asset AssetID) bool {
	return g.bundleAssets[bundle][asset]
}

// GetMainEntry returns the asset the bundle was created with, if any. A
// bundle created with a UniqueKey in place of an entry asset (a shared
// bundle) has none, even after assets have been added to it.
func (g *BundleGraph) GetMainEntry(bundle BundleID) (AssetID, bool) {
	if b := g.bundles[bundle]; b != nil && b.UniqueKey != "" {
		return invalidAssetID, false
	}
	roots := g.bundleRoots[bundle]
	if len(roots) == 0 {
		return invalidAssetID, false
	}
	return roots[0], true
}

// GetTotalSize returns the asset's own transformed size. The host API this
// module is modeled on allows a richer rollup (e.g. inline children); this
// module has no inline-child size aggregation to add, so it is exactly
// asset.Size.
func (g *BundleGraph) GetTotalSize(asset AssetID) uint64 {
	return g.ag.Asset(asset).Size
}

// GetDependencyAssets returns every asset a dependency resolves to in the
// underlying asset graph, independent of any particular bundle.
func (g *BundleGraph) GetDependencyAssets(dep DependencyID) []AssetID {
	return g.ag.Resolve(dep)
}

// GetDependencyResolution returns the asset dep resolves to *within
// bundle*: for a synchronous dependency this is always its single
// resolution; for an async dependency it is only present once the
// dependency has been internalized in that specific bundle (§4.2 step 4).
func (g *BundleGraph) GetDependencyResolution(dep DependencyID, bundle BundleID) (AssetID, bool) {
	d := g.ag.Dependency(dep)
	if d.IsAsync && !g.internalized[bundle][dep] {
		return invalidAssetID, false
	}
	resolved := g.ag.Resolve(dep)
	if len(resolved) == 0 {
		return invalidAssetID, false
	}
	return resolved[0], true
}

// ResolveExternalDependency reports what a dependency resolves to outside
// of any particular bundle: either a bundle group (async imports, unless
// internalized) or a directly referenced asset (asset-reference edges).
func (g *BundleGraph) ResolveExternalDependency(dep DependencyID) (ExternalResolution, error) {
	if grp, ok := g.groupByOpener[dep]; ok {
		return ExternalResolution{Kind: ExternalBundleGroup, Group: grp}, nil
	}
	if asset, ok := g.assetRefs[dep]; ok {
		return ExternalResolution{Kind: ExternalAsset, Asset: asset}, nil
	}
	return ExternalResolution{}, &ExternalResolutionMismatchError{DependencyID: g.ag.Dependency(dep).ID}
}

// FindBundlesWithAsset returns every bundle currently containing asset.
func (g *BundleGraph) FindBundlesWithAsset(asset AssetID) []BundleID {
	bs := g.assetBundles[asset]
	out := make([]BundleID, 0, len(bs))
	for b := range bs {
		out = append(out, b)
	}
	return out
}

// FindBundlesWithDependency returns every bundle containing the asset that
// declared dep.
func (g *BundleGraph) FindBundlesWithDependency(dep DependencyID) []BundleID {
	return g.FindBundlesWithAsset(g.ag.Dependency(dep).Source)
}

// GetBundleGroupsContainingBundle returns every group bundle is a member
// of.
func (g *BundleGraph) GetBundleGroupsContainingBundle(bundle BundleID) []GroupID {
	groups := g.bundleGroups[bundle]
	out := make([]GroupID, 0, len(groups))
	for gr := range groups {
		out = append(out, gr)
	}
	return out
}

// GetBundlesInBundleGroup returns every bundle in group, in the order they
// were added.
func (g *BundleGraph) GetBundlesInBundleGroup(group GroupID) []BundleID {
	out := make([]BundleID, len(g.groupBundles[group]))
	copy(out, g.groupBundles[group])
	return out
}

// GetParentBundlesOfBundleGroup returns the bundles that still need to load
// group at runtime: the bundles containing the dependency that opened the
// group, excluding any in which that dependency has since been
// internalized. A group opened by an entry dependency has no parent: it is
// a root of the bundle-group tree, declared at the graph's top level rather
// than inside another bundle (an entry Dependency's Source is meaningless
// and must never be read as if it named an enclosing bundle).
func (g *BundleGraph) GetParentBundlesOfBundleGroup(group GroupID) []BundleID {
	grp := g.groups[group]
	if grp == nil || !grp.HasOpener || g.ag.Dependency(grp.OpenedBy).IsEntry {
		return nil
	}
	var out []BundleID
	for _, b := range g.FindBundlesWithDependency(grp.OpenedBy) {
		if !g.internalized[b][grp.OpenedBy] {
			out = append(out, b)
		}
	}
	return out
}

// GetSiblingBundles returns every other bundle that shares a bundle group
// with bundle.
func (g *BundleGraph) GetSiblingBundles(bundle BundleID) []BundleID {
	seen := map[BundleID]bool{bundle: true}
	var out []BundleID
	for group := range g.bundleGroups[bundle] {
		for _, other := range g.groupBundles[group] {
			if !seen[other] {
				seen[other] = true
				out = append(out, other)
			}
		}
	}
	return out
}

type ancestorTraversal struct {
	g       *BundleGraph
	visited map[BundleID]bool
}

func (t *ancestorTraversal) Edges(x util.T) []util.T {
	b := x.(BundleID)
	var out []util.T
	for group := range t.g.bundleGroups[b] {
		for _, p := range t.g.GetParentBundlesOfBundleGroup(group) {
			out = append(out, p)
		}
	}
	return out
}

func (t *ancestorTraversal) Visited(x util.T) bool {
	b := x.(BundleID)
	was := t.visited[b]
	t.visited[b] = true
	return was
}

// AncestorBundles returns every bundle transitively reachable "upward"
// from bundle via bundle-group parentage, excluding bundle itself.
func (g *BundleGraph) AncestorBundles(bundle BundleID) []BundleID {
	t := &ancestorTraversal{g: g, visited: map[BundleID]bool{}}
	nodes := util.Reachable(t, bundle)
	out := make([]BundleID, 0, len(nodes))
	for _, n := range nodes {
		b := n.(BundleID)
		if b != bundle {
			out = append(out, b)
		}
	}
	return out
}

// IsAssetInAncestorBundles reports whether asset is present in any ancestor
// of bundle.
func (g *BundleGraph) IsAssetInAncestorBundles(bundle BundleID, asset AssetID) bool {
	for _, anc := range g.AncestorBundles(bundle) {
		if g.HasAsset(anc, asset) {
			return true
		}
	}
	return false
}

// CreateAssetReference records that dep resolves, across a bundle
// boundary, directly to asset.
func (g *BundleGraph) CreateAssetReference(dep DependencyID, asset AssetID) {
	g.assetRefs[dep] = asset
}

// InternalizeAsyncDependency marks dep as resolved locally within bundle,
// so the runtime need not load its external bundle group from there.
func (g *BundleGraph) InternalizeAsyncDependency(bundle BundleID, dep DependencyID) {
	if g.internalized[bundle] == nil {
		g.internalized[bundle] = map[DependencyID]bool{}
	}
	g.internalized[bundle][dep] = true
}

// RemoveBundleGroup deletes group and its membership links. Bundles that
// were only reachable via group become unreachable from the graph's
// entries; the core never deletes bundles themselves (§3 Lifecycles).
func (g *BundleGraph) RemoveBundleGroup(group GroupID) {
	for _, b := range g.groupBundles[group] {
		delete(g.bundleGroups[b], group)
	}
	delete(g.groupBundles, group)
	if grp := g.groups[group]; grp != nil && grp.HasOpener {
		if g.groupByOpener[grp.OpenedBy] == group {
			delete(g.groupByOpener, grp.OpenedBy)
		}
	}
	delete(g.groups, group)
	for i, id := range g.groupOrder {
		if id == group {
			g.groupOrder = append(g.groupOrder[:i:i], g.groupOrder[i+1:]...)
			break
		}
	}
}

var _ MutableBundleGraph = (*BundleGraph)(nil)
