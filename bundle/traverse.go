// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

// VisitControl lets a visitor callback influence how a traversal proceeds
// past the current node: skip its children, or stop the traversal
// entirely. The zero value continues normally.
type VisitControl struct {
	skipChildren bool
	stop         bool
}

// SkipChildren requests that the traversal not descend into the current
// node's children.
func (c *VisitControl) SkipChildren() { c.skipChildren = true }

// Stop requests that the traversal end immediately, including any
// enclosing ancestors.
func (c *VisitControl) Stop() { c.stop = true }

// Node identifies a point in a Traverse walk: either a bundle or a bundle
// group, never both.
type Node struct {
	IsGroup bool
	Bundle  BundleID
	Group   GroupID
}

// TraverseContext is the information carried downward through a Traverse
// walk: the enclosing bundle group, the dependency that opened the
// enclosing group, and the parent node. It carries no type-to-bundle
// mapping; the primary pass keeps its own per-group map.
type TraverseContext struct {
	BundleGroup           GroupID
	HasBundleGroup        bool
	BundleGroupDependency DependencyID
	HasDependency         bool
	Parent                *Node
}

// Visitor walks the bundle-group tree: bundle groups containing bundles,
// bundles opening child bundle groups. Enter callbacks may call
// SkipChildren or Stop on the supplied control; exit callbacks run on the
// way back up, also for a node whose children were skipped, but not for any
// node once the walk has stopped.
type Visitor struct {
	EnterGroup  func(node Node, ctx *TraverseContext, control *VisitControl)
	ExitGroup   func(node Node, ctx *TraverseContext)
	EnterBundle func(node Node, ctx *TraverseContext, control *VisitControl)
	ExitBundle  func(node Node, ctx *TraverseContext)
}

// BundleVisitor walks every bundle exactly once, ancestors before
// descendants.
type BundleVisitor struct {
	Visit func(bundle BundleID, control *VisitControl)
}

// ContentsVisitor walks the assets contained within a single bundle.
type ContentsVisitor struct {
	Enter func(asset AssetID, control *VisitControl)
	Exit  func(asset AssetID)
}

func (g *BundleGraph) childGroupsOf(bundle BundleID) []GroupID {
	var out []GroupID
	for _, group := range g.groupOrder {
		for _, p := range g.GetParentBundlesOfBundleGroup(group) {
			if p == bundle {
				out = append(out, group)
				break
			}
		}
	}
	return out
}

func (g *BundleGraph) childBundlesOf(bundle BundleID) []BundleID {
	var out []BundleID
	for _, group := range g.childGroupsOf(bundle) {
		out = append(out, g.groupBundles[group]...)
	}
	return out
}

func (g *BundleGraph) rootGroups() []GroupID {
	var out []GroupID
	for _, group := range g.groupOrder {
		if len(g.GetParentBundlesOfBundleGroup(group)) == 0 {
			out = append(out, group)
		}
	}
	return out
}

// Traverse walks the full bundle-group tree from its root groups (those
// with no parent bundle, i.e. entries) down through bundles and any child
// groups they open.
func (g *BundleGraph) Traverse(v *Visitor) {
	visitedGroups := map[GroupID]bool{}
	stop := false

	var walkBundle func(bundle BundleID, ctx *TraverseContext)
	var walkGroup func(group GroupID, ctx *TraverseContext)

	walkGroup = func(group GroupID, ctx *TraverseContext) {
		if stop || visitedGroups[group] {
			return
		}
		visitedGroups[group] = true
		node := Node{IsGroup: true, Group: group}
		control := &VisitControl{}
		if v.EnterGroup != nil {
			v.EnterGroup(node, ctx, control)
		}
		if control.stop {
			stop = true
			return
		}
		if !control.skipChildren {
			childCtx := &TraverseContext{BundleGroup: group, HasBundleGroup: true, Parent: &node}
			if grp := g.groups[group]; grp != nil && grp.HasOpener {
				childCtx.BundleGroupDependency = grp.OpenedBy
				childCtx.HasDependency = true
			}
			for _, bundle := range g.groupBundles[group] {
				walkBundle(bundle, childCtx)
				if stop {
					return
				}
			}
		}
		if v.ExitGroup != nil {
			v.ExitGroup(node, ctx)
		}
	}

	walkBundle = func(bundle BundleID, ctx *TraverseContext) {
		if stop {
			return
		}
		node := Node{Bundle: bundle}
		control := &VisitControl{}
		if v.EnterBundle != nil {
			v.EnterBundle(node, ctx, control)
		}
		if control.stop {
			stop = true
			return
		}
		if !control.skipChildren {
			for _, child := range g.childGroupsOf(bundle) {
				walkGroup(child, &TraverseContext{Parent: &node})
				if stop {
					return
				}
			}
		}
		if v.ExitBundle != nil {
			v.ExitBundle(node, ctx)
		}
	}

	for _, root := range g.rootGroups() {
		walkGroup(root, &TraverseContext{})
		if stop {
			break
		}
	}
}

// TraverseBundles visits every bundle exactly once: first breadth-first from
// the bundles with no ancestors (per AncestorBundles) down through the
// bundles of the child groups they open, then every bundle not reached that
// way, in creation order. A bundle is visited after the parent it was first
// reached through; when it has several parents at different depths, a
// deeper parent may be visited after it. The optimizer's deduplication step
// and the wrap pass walk bundles in the reverse of this order.
func (g *BundleGraph) TraverseBundles(v *BundleVisitor) {
	visited := map[BundleID]bool{}
	var queue []BundleID
	for _, b := range g.bundleOrder {
		if len(g.AncestorBundles(b)) == 0 {
			queue = append(queue, b)
		}
	}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if visited[b] {
			continue
		}
		visited[b] = true
		control := &VisitControl{}
		if v.Visit != nil {
			v.Visit(b, control)
		}
		if control.stop {
			return
		}
		if control.skipChildren {
			continue
		}
		queue = append(queue, g.childBundlesOf(b)...)
	}
	for _, b := range g.bundleOrder {
		if visited[b] {
			continue
		}
		visited[b] = true
		control := &VisitControl{}
		if v.Visit != nil {
			v.Visit(b, control)
		}
		if control.stop {
			return
		}
	}
}

// TraverseContents walks the assets contained in bundle, starting from its
// roots and following same-bundle synchronous dependencies (the same rule
// AddAssetGraphToBundle uses to compute containment).
func (g *BundleGraph) TraverseContents(bundle BundleID, v *ContentsVisitor) {
	b := g.bundles[bundle]
	if b == nil {
		return
	}
	visited := map[AssetID]bool{}
	stop := false

	var walk func(a AssetID)
	walk = func(a AssetID) {
		if stop || visited[a] {
			return
		}
		visited[a] = true
		control := &VisitControl{}
		if v.Enter != nil {
			v.Enter(a, control)
		}
		if control.stop {
			stop = true
			return
		}
		if !control.skipChildren {
			for _, depID := range g.ag.OutgoingDependencies(a) {
				dep := g.ag.Dependency(depID)
				if dep.IsEntry || dep.IsAsync {
					continue
				}
				for _, ra := range g.ag.Resolve(depID) {
					if g.ag.Asset(ra).Type != b.Type {
						continue
					}
					walk(ra)
					if stop {
						return
					}
				}
			}
		}
		if v.Exit != nil {
			v.Exit(a)
		}
	}

	for _, root := range g.bundleRoots[bundle] {
		walk(root)
		if stop {
			return
		}
	}
}
