// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package wrap implements the third bundling pass: propagating the
// shouldWrap marker down each bundle's internal dependency subgraph so
// every downstream consumer can tell, from an asset's own metadata, that
// it needs to be emitted as a deferred/wrapped module rather than inlined
// directly.
package wrap

import "github.com/assetgraph/bundler/bundle"

// Run marks shouldWrap on every asset reachable, within its containing
// bundle, from a dependency edge that itself carries (or inherits)
// shouldWrap.
func Run(bg bundle.MutableBundleGraph) {
	for _, b := range postorderBundles(bg) {
		markBundle(bg, b)
	}
}

// postorderBundles visits descendants before the ancestors that might
// contain overlapping assets; since every asset this pass touches is
// scoped to its own containing bundle, the order does not change the
// result, but postorder is kept for consistency with the optimizer's
// passes (§4.2/§4.3 both specify postorder bundle traversal).
func postorderBundles(bg bundle.MutableBundleGraph) []bundle.BundleID {
	var order []bundle.BundleID
	bg.TraverseBundles(&bundle.BundleVisitor{
		Visit: func(b bundle.BundleID, control *bundle.VisitControl) {
			order = append(order, b)
		},
	})
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

type edge struct {
	dep bundle.DependencyID
	to  bundle.AssetID
}

// markBundle walks b's internal dependency subgraph (synchronous edges
// whose resolution also belongs to b) from its intrinsic roots, carrying
// the inherited shouldWrap flag downward.
func markBundle(bg bundle.MutableBundleGraph, b bundle.BundleID) {
	ag := bg.AssetGraph()

	members := map[bundle.AssetID]bool{}
	bg.TraverseContents(b, &bundle.ContentsVisitor{
		Enter: func(a bundle.AssetID, control *bundle.VisitControl) {
			members[a] = true
		},
	})
	if len(members) == 0 {
		return
	}

	adjacency := map[bundle.AssetID][]edge{}
	indegree := map[bundle.AssetID]int{}
	for m := range members {
		indegree[m] = 0
	}
	for m := range members {
		for _, depID := range ag.OutgoingDependencies(m) {
			d := ag.Dependency(depID)
			if d.IsAsync {
				continue
			}
			for _, ra := range ag.Resolve(depID) {
				if !members[ra] {
					continue
				}
				adjacency[m] = append(adjacency[m], edge{dep: depID, to: ra})
				indegree[ra]++
			}
		}
	}

	var roots []bundle.AssetID
	for m := range members {
		if indegree[m] == 0 {
			roots = append(roots, m)
		}
	}

	markedTrue := map[bundle.AssetID]bool{}
	// visiting guards the current recursion path. A synchronous same-bundle
	// dependency cycle with no shouldWrap edge anywhere in it (e.g. A->B->C->B)
	// never trips the markedTrue dedup, since that only fires once flag is
	// true, so without this the walk would recurse forever.
	visiting := map[bundle.AssetID]bool{}
	var walk func(a bundle.AssetID, inherited bool)
	walk = func(a bundle.AssetID, inherited bool) {
		if visiting[a] {
			return
		}
		visiting[a] = true
		defer delete(visiting, a)

		for _, e := range adjacency[a] {
			dep := ag.Dependency(e.dep)
			flag := inherited || dep.Meta.ShouldWrap()
			if flag {
				ag.Asset(e.to).Meta.SetShouldWrap(true)
				if markedTrue[e.to] {
					continue
				}
				markedTrue[e.to] = true
			}
			walk(e.to, flag)
		}
	}
	for _, root := range roots {
		walk(root, false)
	}
}
