// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// twoEntriesOneAsync builds: entry-a -> a -> (async) -> shared, entry-b -> b.
// "shared" sits in its own bundle group opened by a's async dependency, with
// "a"'s bundle as the group's only parent.
func twoEntriesOneAsync(t *testing.T) (*AssetGraph, *BundleGraph, map[string]BundleID, GroupID) {
	t.Helper()
	ag := NewAssetGraph()
	a := ag.AddAsset(&Asset{ID: "a", Type: "js"})
	b := ag.AddAsset(&Asset{ID: "b", Type: "js"})
	shared := ag.AddAsset(&Asset{ID: "shared", Type: "js"})

	target := jsTarget()
	entryA := ag.AddDependency(&Dependency{ID: "entry-a", IsEntry: true, Target: &target})
	ag.AddResolution(entryA, a)
	ag.AddEntryDependency(entryA)

	entryB := ag.AddDependency(&Dependency{ID: "entry-b", IsEntry: true, Target: &target})
	ag.AddResolution(entryB, b)
	ag.AddEntryDependency(entryB)

	asyncDep := ag.AddDependency(&Dependency{ID: "a->shared", Source: a, IsAsync: true, Target: &target})
	ag.AddEdge(a, asyncDep)
	ag.AddResolution(asyncDep, shared)

	bg := NewBundleGraph(ag)

	bundles := map[string]BundleID{}
	bundles["a"] = bg.CreateBundle(CreateBundleOptions{EntryAsset: a, HasEntry: true, Type: "js", IsEntry: true, IsSplittable: true})
	bg.AddAssetGraphToBundle(a, bundles["a"])

	bundles["b"] = bg.CreateBundle(CreateBundleOptions{EntryAsset: b, HasEntry: true, Type: "js", IsEntry: true, IsSplittable: true})
	bg.AddAssetGraphToBundle(b, bundles["b"])

	groupA := bg.CreateBundleGroup(entryA, target)
	bg.AddBundleToBundleGroup(bundles["a"], groupA)
	groupB := bg.CreateBundleGroup(entryB, target)
	bg.AddBundleToBundleGroup(bundles["b"], groupB)

	asyncGroup := bg.CreateBundleGroup(asyncDep, target)
	bundles["shared"] = bg.CreateBundle(CreateBundleOptions{EntryAsset: shared, HasEntry: true, Type: "js", IsSplittable: true})
	bg.AddAssetGraphToBundle(shared, bundles["shared"])
	bg.AddBundleToBundleGroup(bundles["shared"], asyncGroup)

	return ag, bg, bundles, asyncGroup
}

func TestTraverseBundlesVisitsAncestorsBeforeDescendants(t *testing.T) {
	_, bg, bundles, _ := twoEntriesOneAsync(t)

	var order []BundleID
	bg.TraverseBundles(&BundleVisitor{
		Visit: func(b BundleID, _ *VisitControl) {
			order = append(order, b)
		},
	})

	require.Len(t, order, 3)
	indexOf := func(b BundleID) int {
		for i, x := range order {
			if x == b {
				return i
			}
		}
		return -1
	}
	require.Less(t, indexOf(bundles["a"]), indexOf(bundles["shared"]), "a's bundle must be visited before the shared bundle it opens")
}

func TestTraverseBundlesStopStopsTraversal(t *testing.T) {
	_, bg, _, _ := twoEntriesOneAsync(t)

	var visited int
	bg.TraverseBundles(&BundleVisitor{
		Visit: func(_ BundleID, control *VisitControl) {
			visited++
			control.Stop()
		},
	})

	require.Equal(t, 1, visited)
}

func TestTraverseVisitsGroupsAndBundlesFromRoots(t *testing.T) {
	_, bg, bundles, asyncGroup := twoEntriesOneAsync(t)

	var groupsSeen []GroupID
	var bundlesSeen []BundleID
	bg.Traverse(&Visitor{
		EnterGroup: func(node Node, _ *TraverseContext, _ *VisitControl) {
			groupsSeen = append(groupsSeen, node.Group)
		},
		EnterBundle: func(node Node, _ *TraverseContext, _ *VisitControl) {
			bundlesSeen = append(bundlesSeen, node.Bundle)
		},
	})

	require.Contains(t, groupsSeen, asyncGroup)
	require.ElementsMatch(t, []BundleID{bundles["a"], bundles["b"], bundles["shared"]}, bundlesSeen)
}

func TestTraverseSkipChildrenPrunesSubtree(t *testing.T) {
	_, bg, bundles, _ := twoEntriesOneAsync(t)

	var bundlesSeen []BundleID
	bg.Traverse(&Visitor{
		EnterBundle: func(node Node, _ *TraverseContext, control *VisitControl) {
			bundlesSeen = append(bundlesSeen, node.Bundle)
			if node.Bundle == bundles["a"] {
				control.SkipChildren()
			}
		},
	})

	require.Contains(t, bundlesSeen, bundles["a"])
	require.NotContains(t, bundlesSeen, bundles["shared"], "skipping a's children must prune the async group it opens")
	require.Contains(t, bundlesSeen, bundles["b"])
}

func TestTraverseContentsFollowsSameTypeSyncDependencies(t *testing.T) {
	ag := NewAssetGraph()
	a := ag.AddAsset(&Asset{ID: "a", Type: "js"})
	util := ag.AddAsset(&Asset{ID: "util", Type: "js"})
	style := ag.AddAsset(&Asset{ID: "style.css", Type: "css"})

	importUtil := ag.AddDependency(&Dependency{ID: "a->util", Source: a})
	ag.AddEdge(a, importUtil)
	ag.AddResolution(importUtil, util)

	importStyle := ag.AddDependency(&Dependency{ID: "a->style", Source: a})
	ag.AddEdge(a, importStyle)
	ag.AddResolution(importStyle, style)

	bg := NewBundleGraph(ag)
	b := bg.CreateBundle(CreateBundleOptions{EntryAsset: a, HasEntry: true, Type: "js", IsSplittable: true})
	bg.AddAssetGraphToBundle(a, b)

	var seen []AssetID
	bg.TraverseContents(b, &ContentsVisitor{
		Enter: func(asset AssetID, _ *VisitControl) {
			seen = append(seen, asset)
		},
	})

	require.ElementsMatch(t, []AssetID{a, util}, seen, "the css import is a cross-bundle reference, not bundle content")
}

func TestTraverseContentsUnknownBundleIsNoop(t *testing.T) {
	ag := NewAssetGraph()
	bg := NewBundleGraph(ag)

	called := false
	bg.TraverseContents(BundleID(42), &ContentsVisitor{
		Enter: func(AssetID, *VisitControl) { called = true },
	})

	require.False(t, called)
}
