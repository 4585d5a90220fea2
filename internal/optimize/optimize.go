// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package optimize implements the second bundling pass: five sequential
// clean-up steps run over the bundle graph the primary pass produced
// (hoisting, ancestor deduplication, shared-bundle extraction, async
// internalization, and orphan cleanup). Each step materializes the work it
// plans to do before mutating the graph, since the graph's own query
// methods are not safe to call while an in-progress mutation is being
// decided.
package optimize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/assetgraph/bundler/bundle"
	"github.com/assetgraph/bundler/internal/fingerprint"
)

// Default budgets from §6; a host overrides these through Config and,
// ultimately, the ambient configuration layer.
const (
	DefaultMaxParallelRequests = 5
	DefaultMinBundleSize       = 30000
	DefaultMinBundles          = 1
)

// Config holds the optimizer's tunable budgets.
type Config struct {
	MaxParallelRequests int
	MinBundleSize       uint64
	MinBundles          int
}

// DefaultConfig returns the budgets named in §6.
func DefaultConfig() Config {
	return Config{
		MaxParallelRequests: DefaultMaxParallelRequests,
		MinBundleSize:       DefaultMinBundleSize,
		MinBundles:          DefaultMinBundles,
	}
}

// Run executes the five steps of §4.2 in order against bg. Callers that
// want per-step instrumentation (compile.Compiler does, to report each of
// optimize-hoist/dedup/extract/internalize/prune as its own named stage)
// should call the five exported step functions directly instead.
func Run(bg bundle.MutableBundleGraph, cfg Config) error {
	HoistSingleOrigin(bg, cfg)
	DeduplicateAncestors(bg)
	ExtractSharedBundles(bg, cfg)
	touched, _, err := InternalizeAsync(bg)
	if err != nil {
		return err
	}
	PruneOrphanGroups(bg, touched)
	return nil
}

// HoistSingleOrigin implements §4.2 step 1.
func HoistSingleOrigin(bg bundle.MutableBundleGraph, cfg Config) {
	for _, b := range bg.AllBundles() {
		bdl := bg.Bundle(b)
		if !bdl.IsSplittable || bdl.IsInline {
			continue
		}
		mainEntry, ok := bg.GetMainEntry(b)
		if !ok {
			continue
		}

		var candidates []bundle.BundleID
		for _, c := range bg.FindBundlesWithAsset(mainEntry) {
			if c == b {
				continue
			}
			cb := bg.Bundle(c)
			if cb.IsEntry || cb.IsInline || !cb.IsSplittable {
				continue
			}
			candidates = append(candidates, c)
		}
		if len(candidates) == 0 {
			continue
		}

		var siblings []bundle.BundleID
		for _, s := range bg.GetSiblingBundles(b) {
			sb := bg.Bundle(s)
			if sb.IsSplittable && !sb.IsInline {
				siblings = append(siblings, s)
			}
		}

		for _, c := range candidates {
			groups := bg.GetBundleGroupsContainingBundle(c)
			underBudget := true
			for _, g := range groups {
				if len(bg.GetBundlesInBundleGroup(g)) >= cfg.MaxParallelRequests {
					underBudget = false
					break
				}
			}
			if !underBudget {
				continue
			}

			bg.RemoveAssetGraphFromBundle(mainEntry, c)
			for _, g := range groups {
				bg.AddBundleToBundleGroup(b, g)
				for _, s := range siblings {
					bg.AddBundleToBundleGroup(s, g)
				}
			}
		}
	}
}

// DeduplicateAncestors implements §4.2 step 2, run postorder over bundles
// (descendants before the ancestors that might subsume them). It returns
// the number of asset/bundle memberships it removed.
func DeduplicateAncestors(bg bundle.MutableBundleGraph) int {
	var removed int
	for _, b := range postorderBundles(bg) {
		removed += dedupeOneBundle(bg, b)
	}
	return removed
}

func dedupeOneBundle(bg bundle.MutableBundleGraph, b bundle.BundleID) int {
	bdl := bg.Bundle(b)
	if !bdl.IsSplittable || bdl.Env.IsIsolated() {
		return 0
	}
	var removed int
	for _, a := range bundleContents(bg, b) {
		if !bg.HasAsset(b, a) {
			continue // already removed earlier in this same pass
		}
		if bg.IsAssetInAncestorBundles(b, a) {
			bg.RemoveAssetGraphFromBundle(a, b)
			removed++
		}
	}
	return removed
}

// postorderBundles returns bundle ids in the reverse of TraverseBundles'
// order, so a bundle is considered before the parent it was reached
// through.
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

// bundleContents returns every asset currently contained in b.
func bundleContents(bg bundle.MutableBundleGraph, b bundle.BundleID) []bundle.AssetID {
	var out []bundle.AssetID
	bg.TraverseContents(b, &bundle.ContentsVisitor{
		Enter: func(a bundle.AssetID, control *bundle.VisitControl) {
			out = append(out, a)
		},
	})
	return out
}

type sharedCandidate struct {
	key     string
	bundles []bundle.BundleID
	assets  []bundle.AssetID
	size    uint64
}

// ExtractSharedBundles implements §4.2 step 3, returning the number of
// shared bundles it created.
func ExtractSharedBundles(bg bundle.MutableBundleGraph, cfg Config) int {
	decided := map[bundle.AssetID]bool{}
	candidates := map[string]*sharedCandidate{}
	var order []string

	for _, b := range bg.AllBundles() {
		bg.TraverseContents(b, &bundle.ContentsVisitor{
			Enter: func(a bundle.AssetID, control *bundle.VisitControl) {
				if decided[a] {
					control.SkipChildren()
					return
				}
				decided[a] = true

				containers := sharingCandidateBundles(bg, a)
				if len(containers) <= cfg.MinBundles {
					return
				}

				key := bundleSetKey(containers)
				c, exists := candidates[key]
				if !exists {
					c = &sharedCandidate{key: key, bundles: containers}
					candidates[key] = c
					order = append(order, key)
				}
				c.assets = append(c.assets, a)
				c.size += bg.GetTotalSize(a)
				control.SkipChildren()
			},
		})
	}

	var selected []*sharedCandidate
	for _, key := range order {
		c := candidates[key]
		if c.size >= cfg.MinBundleSize {
			selected = append(selected, c)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].size != selected[j].size {
			return selected[i].size > selected[j].size
		}
		return selected[i].key < selected[j].key
	})

	var extracted int
	for _, c := range selected {
		groupSet := map[bundle.GroupID]bool{}
		for _, src := range c.bundles {
			for _, g := range bg.GetBundleGroupsContainingBundle(src) {
				groupSet[g] = true
			}
		}

		overBudget := false
		for g := range groupSet {
			if len(bg.GetBundlesInBundleGroup(g)) >= cfg.MaxParallelRequests {
				overBudget = true
				break
			}
		}
		if overBudget {
			continue
		}

		first := bg.Bundle(c.bundles[0])
		shared := bg.CreateBundle(bundle.CreateBundleOptions{
			UniqueKey:    fingerprint.SharedBundleKey(bundleIDStrings(c.bundles)),
			Type:         first.Type,
			Env:          first.Env,
			Target:       first.Target,
			IsSplittable: true,
		})

		for _, a := range c.assets {
			for _, src := range c.bundles {
				bg.RemoveAssetGraphFromBundle(a, src)
			}
			bg.AddAssetGraphToBundle(a, shared)
		}
		for g := range groupSet {
			bg.AddBundleToBundleGroup(shared, g)
		}

		dedupeOneBundle(bg, shared)
		extracted++
	}
	return extracted
}

// sharingCandidateBundles returns the splittable bundles containing a that
// do not already treat a as their own main entry. A bundle's own isEntry
// flag (§3 Invariant 6: entry bundles are never candidates for *carrying*
// shared code) is a separate concern from whether this particular asset is
// eligible to be pulled out of it; an entry bundle that merely duplicates
// someone else's shared asset is still a valid extraction source, so only
// the "is a's own home" exclusion applies here.
func sharingCandidateBundles(bg bundle.MutableBundleGraph, a bundle.AssetID) []bundle.BundleID {
	var out []bundle.BundleID
	for _, b := range bg.FindBundlesWithAsset(a) {
		bdl := bg.Bundle(b)
		if !bdl.IsSplittable {
			continue
		}
		if main, ok := bg.GetMainEntry(b); ok && main == a {
			continue
		}
		out = append(out, b)
	}
	return out
}

func bundleIDStrings(ids []bundle.BundleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(int(id))
	}
	sort.Strings(out)
	return out
}

func bundleSetKey(ids []bundle.BundleID) string {
	return strings.Join(bundleIDStrings(ids), ",")
}

// InternalizeAsync implements §4.2 step 4, returning the bundle groups it
// touched (so PruneOrphanGroups can consider exactly those for removal) and
// the number of dependency/bundle pairs it internalized.
func InternalizeAsync(bg bundle.MutableBundleGraph) ([]bundle.GroupID, int, error) {
	ag := bg.AssetGraph()
	touched := map[bundle.GroupID]bool{}
	var internalized int

	for i := 0; i < ag.DependencyCount(); i++ {
		dep := bundle.DependencyID(i)
		d := ag.Dependency(dep)
		if !d.IsAsync || d.IsEntry {
			continue
		}
		resolved := ag.Resolve(dep)
		if len(resolved) == 0 {
			continue
		}
		asset := resolved[0]

		res, err := bg.ResolveExternalDependency(dep)
		if err != nil {
			return nil, 0, err
		}
		if res.Kind != bundle.ExternalBundleGroup {
			return nil, 0, &bundle.ExternalResolutionMismatchError{DependencyID: d.ID}
		}

		internalizedSomewhere := false
		for _, b := range bg.FindBundlesWithDependency(dep) {
			if bg.HasAsset(b, asset) || bg.IsAssetInAncestorBundles(b, asset) {
				bg.InternalizeAsyncDependency(b, dep)
				internalizedSomewhere = true
				internalized++
			}
		}
		if internalizedSomewhere {
			touched[res.Group] = true
		}
	}

	out := make([]bundle.GroupID, 0, len(touched))
	for g := range touched {
		out = append(out, g)
	}
	return out, internalized, nil
}

// PruneOrphanGroups implements §4.2 step 5: any of the groups touched by
// InternalizeAsync that no longer has a parent bundle is removed. It
// returns the number of groups it removed.
func PruneOrphanGroups(bg bundle.MutableBundleGraph, touched []bundle.GroupID) int {
	var removed int
	for _, g := range touched {
		if len(bg.GetParentBundlesOfBundleGroup(g)) == 0 {
			bg.RemoveBundleGroup(g)
			removed++
		}
	}
	return removed
}
