// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package primary implements the first bundling pass: a preorder DFS over
// the asset graph that opens bundle groups at every split point (entries,
// async imports, isolated/inline assets) and type-splits a group's
// dependency subgraph into one bundle per asset type, producing a bundle
// graph with no optimizations applied yet.
package primary

import (
	"github.com/assetgraph/bundler/bundle"
)

// dfsContext is the state carried down the DFS stack. It is small and
// copyable so each call to visit gets its own value; bundleByType is the
// one field shared by reference within a bundle group, since every
// dependency resolved while inside the group must see bundles created by
// siblings visited earlier.
type dfsContext struct {
	group        bundle.GroupID
	hasGroup     bool
	bundleByType map[string]bundle.BundleID

	groupDependency    bundle.DependencyID
	hasGroupDependency bool

	parentAsset    bundle.AssetID
	hasParentAsset bool

	target    bundle.Target
	hasTarget bool
}

// Run populates bg (expected empty) with the bundles and bundle groups
// implied by ag's entry dependencies.
func Run(ag *bundle.AssetGraph, bg bundle.MutableBundleGraph) error {
	r := &runner{ag: ag, bg: bg, visited: map[bundle.AssetID][]bundle.BundleID{}}
	for _, dep := range ag.EntryDependencies() {
		if err := r.visit(dep, dfsContext{}); err != nil {
			return err
		}
	}
	return nil
}

// runner holds the traversal's one piece of state that must survive across
// the whole DFS rather than just down a single stack: the per-asset
// sibling-bundle list. Its presence as a map key is also the memo that
// marks an asset as already visited, so a shared subtree is only descended
// once (§4.1's "DFS visits each asset only once" rationale).
type runner struct {
	ag      *bundle.AssetGraph
	bg      bundle.MutableBundleGraph
	visited map[bundle.AssetID][]bundle.BundleID
}

func (r *runner) visit(dep bundle.DependencyID, ctx dfsContext) error {
	d := r.ag.Dependency(dep)
	assets := r.bg.GetDependencyAssets(dep)

	if opensGroup(d, r.ag, assets) {
		return r.openGroup(dep, d, ctx, assets)
	}
	return r.continueGroup(dep, d, ctx, assets)
}

func opensGroup(d *bundle.Dependency, ag *bundle.AssetGraph, assets []bundle.AssetID) bool {
	if d.IsEntry || d.IsAsync {
		return true
	}
	for _, a := range assets {
		asset := ag.Asset(a)
		if asset.IsIsolated || asset.IsInline {
			return true
		}
	}
	return false
}

func (r *runner) resolveTarget(d *bundle.Dependency, ctx dfsContext) (bundle.Target, error) {
	if d.Target != nil {
		return *d.Target, nil
	}
	if ctx.hasTarget {
		return ctx.target, nil
	}
	return bundle.Target{}, &bundle.MissingTargetError{DependencyID: d.ID}
}

// openGroup implements §4.1 step 1: one bundle per resolved asset, each
// becoming the root of its own subtree within the new group.
func (r *runner) openGroup(dep bundle.DependencyID, d *bundle.Dependency, ctx dfsContext, assets []bundle.AssetID) error {
	target, err := r.resolveTarget(d, ctx)
	if err != nil {
		return err
	}

	group := r.bg.CreateBundleGroup(dep, target)
	byType := map[string]bundle.BundleID{}

	for _, a := range assets {
		asset := r.ag.Asset(a)

		bundleID := r.bg.CreateBundle(bundle.CreateBundleOptions{
			EntryAsset:   a,
			HasEntry:     true,
			Type:         asset.Type,
			Env:          asset.Env,
			Target:       target,
			IsEntry:      d.IsEntry && !asset.IsIsolated,
			IsInline:     asset.IsInline,
			IsSplittable: true,
		})
		r.bg.AddBundleToBundleGroup(bundleID, group)
		r.bg.AddAssetGraphToBundle(a, bundleID)
		byType[asset.Type] = bundleID
		r.visited[a] = nil

		childCtx := dfsContext{
			group:              group,
			hasGroup:           true,
			bundleByType:       byType,
			groupDependency:    dep,
			hasGroupDependency: true,
			parentAsset:        a,
			hasParentAsset:     true,
			target:             target,
			hasTarget:          true,
		}
		for _, childDep := range r.ag.OutgoingDependencies(a) {
			if err := r.visit(childDep, childCtx); err != nil {
				return err
			}
		}
	}
	return nil
}

// continueGroup implements §4.1 step 2: the dependency is resolved inside
// an already-open group, so each resolved asset either joins its parent's
// bundle (same type) or splits off into a per-type bundle of its own.
func (r *runner) continueGroup(dep bundle.DependencyID, d *bundle.Dependency, ctx dfsContext, assets []bundle.AssetID) error {
	if !ctx.hasGroup {
		return &bundle.MissingContextError{DependencyID: d.ID}
	}

	allSameType := true
	for i := 1; i < len(assets); i++ {
		if r.ag.Asset(assets[i]).Type != r.ag.Asset(assets[0]).Type {
			allSameType = false
			break
		}
	}

	var parentType string
	if ctx.hasParentAsset {
		parentType = r.ag.Asset(ctx.parentAsset).Type
	}

	for _, a := range assets {
		asset := r.ag.Asset(a)
		if ctx.hasParentAsset && asset.Type == parentType {
			if err := r.sameType(dep, ctx, a, allSameType); err != nil {
				return err
			}
			continue
		}
		if err := r.differentType(dep, ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) sameType(dep bundle.DependencyID, ctx dfsContext, a bundle.AssetID, allSameType bool) error {
	bundleID := ctx.bundleByType[r.ag.Asset(a).Type]

	if sibs, visited := r.visited[a]; visited {
		if allSameType {
			for _, s := range sibs {
				r.bg.AddBundleToBundleGroup(s, ctx.group)
			}
		}
		return nil
	}

	if allSameType {
		r.visited[a] = append([]bundle.BundleID(nil), r.visited[ctx.parentAsset]...)
	} else {
		r.visited[a] = nil
	}
	r.bg.AddAssetGraphToBundle(a, bundleID)

	childCtx := ctx
	childCtx.parentAsset = a
	childCtx.hasParentAsset = true
	for _, childDep := range r.ag.OutgoingDependencies(a) {
		if err := r.visit(childDep, childCtx); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) differentType(dep bundle.DependencyID, ctx dfsContext, a bundle.AssetID) error {
	asset := r.ag.Asset(a)
	bundleID, exists := ctx.bundleByType[asset.Type]
	if exists {
		r.bg.AddAssetGraphToBundle(a, bundleID)
		r.bg.CreateAssetReference(dep, a)
	} else {
		bundleID = r.bg.CreateBundle(bundle.CreateBundleOptions{
			EntryAsset:   a,
			HasEntry:     true,
			Type:         asset.Type,
			Env:          asset.Env,
			Target:       ctx.target,
			IsEntry:      false,
			IsInline:     asset.IsInline,
			IsSplittable: true,
		})
		r.bg.AddBundleToBundleGroup(bundleID, ctx.group)
		r.bg.AddAssetGraphToBundle(a, bundleID)
		ctx.bundleByType[asset.Type] = bundleID
		r.bg.CreateAssetReference(dep, a)
		if ctx.hasParentAsset {
			r.visited[ctx.parentAsset] = append(r.visited[ctx.parentAsset], bundleID)
		}
	}

	if _, visited := r.visited[a]; visited {
		return nil
	}
	r.visited[a] = nil

	childCtx := dfsContext{
		group:              ctx.group,
		hasGroup:           true,
		bundleByType:       ctx.bundleByType,
		groupDependency:    ctx.groupDependency,
		hasGroupDependency: ctx.hasGroupDependency,
		parentAsset:        a,
		hasParentAsset:     true,
		target:             ctx.target,
		hasTarget:          ctx.hasTarget,
	}
	for _, childDep := range r.ag.OutgoingDependencies(a) {
		if err := r.visit(childDep, childCtx); err != nil {
			return err
		}
	}
	return nil
}
