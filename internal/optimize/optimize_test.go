// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assetgraph/bundler/bundle"
	"github.com/assetgraph/bundler/internal/primary"
)

func jsTarget() bundle.Target {
	return bundle.Target{Env: bundle.Env{Context: "browser"}, Dist: "dist", PublicURL: "/"}
}

// TestScenario_S2_SharedExtraction covers §8 S2: three entries each
// importing a 60 KB asset get a shared bundle carrying it, attached to all
// three entry groups, with the duplicate copies removed.
func TestScenario_S2_SharedExtraction(t *testing.T) {
	ag := bundle.NewAssetGraph()
	big := ag.AddAsset(&bundle.Asset{ID: "big", Type: "js", Size: 60_000})

	target := jsTarget()
	var entries []bundle.AssetID
	for _, id := range []string{"a", "b", "c"} {
		asset := ag.AddAsset(&bundle.Asset{ID: id, Type: "js"})
		entries = append(entries, asset)

		entryDep := ag.AddDependency(&bundle.Dependency{ID: "entry-" + id, IsEntry: true, Target: &target})
		ag.AddResolution(entryDep, asset)
		ag.AddEntryDependency(entryDep)

		importBig := ag.AddDependency(&bundle.Dependency{ID: id + "->big", Source: asset})
		ag.AddEdge(asset, importBig)
		ag.AddResolution(importBig, big)
	}

	bg := bundle.NewBundleGraph(ag)
	require.NoError(t, primary.Run(ag, bg))
	require.NoError(t, Run(bg, DefaultConfig()))

	require.Len(t, bg.AllBundles(), 4, "three entry bundles plus one shared bundle")
	require.Len(t, bg.AllBundleGroups(), 3)

	var shared bundle.BundleID
	found := false
	for _, b := range bg.AllBundles() {
		if _, ok := bg.GetMainEntry(b); !ok {
			shared = b
			found = true
		}
	}
	require.True(t, found, "expected one bundle with no single main entry")
	require.True(t, bg.HasAsset(shared, big))

	for _, e := range entries {
		for _, b := range bg.FindBundlesWithAsset(e) {
			require.False(t, bg.HasAsset(b, big), "big should have been removed from each entry bundle")
		}
	}
	for _, g := range bg.AllBundleGroups() {
		members := bg.GetBundlesInBundleGroup(g)
		require.Contains(t, members, shared)
	}
}

// TestScenario_S4_AsyncInternalization covers §8 S4: an async import of an
// asset already present in the importing bundle is internalized, and the
// bundle group originally opened for it is cleaned up as an orphan.
func TestScenario_S4_AsyncInternalization(t *testing.T) {
	ag := bundle.NewAssetGraph()
	a := ag.AddAsset(&bundle.Asset{ID: "a", Type: "js"})
	x := ag.AddAsset(&bundle.Asset{ID: "x", Type: "js", Size: 100})

	target := jsTarget()
	entryDep := ag.AddDependency(&bundle.Dependency{ID: "entry-a", IsEntry: true, Target: &target})
	ag.AddResolution(entryDep, a)
	ag.AddEntryDependency(entryDep)

	syncDep := ag.AddDependency(&bundle.Dependency{ID: "a->x-sync", Source: a})
	ag.AddEdge(a, syncDep)
	ag.AddResolution(syncDep, x)

	asyncDep := ag.AddDependency(&bundle.Dependency{ID: "a->x-async", Source: a, IsAsync: true})
	ag.AddEdge(a, asyncDep)
	ag.AddResolution(asyncDep, x)

	bg := bundle.NewBundleGraph(ag)
	require.NoError(t, primary.Run(ag, bg))
	require.Len(t, bg.AllBundleGroups(), 2, "entry group plus the async import's own group")

	require.NoError(t, Run(bg, DefaultConfig()))

	require.Len(t, bg.AllBundleGroups(), 1, "the async import's group should be removed as an orphan")
}

// TestScenario_S5_RequestBudget covers §8 S5: a shared-bundle candidate is
// skipped entirely when extracting it would push any touched bundle group
// over the request budget, leaving the asset duplicated.
func TestScenario_S5_RequestBudget(t *testing.T) {
	ag := bundle.NewAssetGraph()
	shared := ag.AddAsset(&bundle.Asset{ID: "shared", Type: "js", Size: 100_000})
	bg := bundle.NewBundleGraph(ag)

	b1Entry := ag.AddAsset(&bundle.Asset{ID: "b1-entry", Type: "js"})
	b1 := bg.CreateBundle(bundle.CreateBundleOptions{EntryAsset: b1Entry, HasEntry: true, Type: "js", IsSplittable: true})
	bg.AddAssetGraphToBundle(b1Entry, b1)
	bg.AddAssetGraphToBundle(shared, b1)

	dep1 := ag.AddDependency(&bundle.Dependency{ID: "dep-g1", IsEntry: true})
	g1 := bg.CreateBundleGroup(dep1, bundle.Target{})
	bg.AddBundleToBundleGroup(b1, g1)

	for i := 0; i < 4; i++ {
		fillerAsset := ag.AddAsset(&bundle.Asset{ID: fmt.Sprintf("filler-%d", i), Type: "js"})
		filler := bg.CreateBundle(bundle.CreateBundleOptions{EntryAsset: fillerAsset, HasEntry: true, Type: "js", IsSplittable: true})
		bg.AddAssetGraphToBundle(fillerAsset, filler)
		bg.AddBundleToBundleGroup(filler, g1)
	}
	require.Len(t, bg.GetBundlesInBundleGroup(g1), 5, "g1 is already at the request budget before extraction")

	b2Entry := ag.AddAsset(&bundle.Asset{ID: "b2-entry", Type: "js"})
	b2 := bg.CreateBundle(bundle.CreateBundleOptions{EntryAsset: b2Entry, HasEntry: true, Type: "js", IsSplittable: true})
	bg.AddAssetGraphToBundle(b2Entry, b2)
	bg.AddAssetGraphToBundle(shared, b2)

	dep2 := ag.AddDependency(&bundle.Dependency{ID: "dep-g2", IsEntry: true})
	g2 := bg.CreateBundleGroup(dep2, bundle.Target{})
	bg.AddBundleToBundleGroup(b2, g2)

	bundlesBefore := len(bg.AllBundles())

	require.NoError(t, Run(bg, DefaultConfig()))

	require.Len(t, bg.AllBundles(), bundlesBefore, "no shared bundle should have been created")
	require.True(t, bg.HasAsset(b1, shared))
	require.True(t, bg.HasAsset(b2, shared))
}
