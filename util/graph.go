// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package util

// T is a generic graph node reference. Traversals never inspect its concrete
// type; they only pass it back to the Traversal implementation.
type T = any

// Traversal defines the minimal interface required to walk a directed graph
// without the caller needing to expose its internal representation.
type Traversal interface {
	// Edges returns the nodes reachable from x via a single edge.
	Edges(x T) []T
	// Visited marks x as visited and reports whether it had already been
	// visited. Implementations decide how "visited" is scoped (e.g. per call
	// or across an entire pass).
	Visited(x T) bool
}

// DFS performs a depth-first walk of t starting at start, calling iter for
// every node in visitation order. The walk is iterative (explicit stack) so
// that a node's most-recently-declared edge is explored first; it returns
// true if iter returned true for some node, at which point the walk stops
// early.
func DFS(t Traversal, iter func(T) bool, start T) bool {
	stack := []T{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.Visited(cur) {
			continue
		}
		if iter(cur) {
			return true
		}
		stack = append(stack, t.Edges(cur)...)
	}
	return false
}

// BFS performs a breadth-first walk of t starting at start, calling iter for
// every node in visitation order. It returns true if iter returned true for
// some node, at which point the walk stops early.
func BFS(t Traversal, iter func(T) bool, start T) bool {
	queue := []T{start}
	t.Visited(start)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if iter(cur) {
			return true
		}
		for _, next := range t.Edges(cur) {
			if !t.Visited(next) {
				queue = append(queue, next)
			}
		}
	}
	return false
}

// DFSPath returns a path from "from" to "to" found by depth-first search, or
// an empty slice if "to" is unreachable. equals is used to compare nodes
// since T is untyped.
func DFSPath(t Traversal, equals func(a, b T) bool, from, to T) []T {
	if equals(from, to) {
		t.Visited(from)
		return []T{from}
	}
	t.Visited(from)
	for _, next := range t.Edges(from) {
		if p := dfsPathRecursive(t, equals, next, to); len(p) > 0 {
			return append([]T{from}, p...)
		}
	}
	return nil
}

func dfsPathRecursive(t Traversal, equals func(a, b T) bool, from, to T) []T {
	if t.Visited(from) {
		return nil
	}
	if equals(from, to) {
		return []T{from}
	}
	for _, next := range t.Edges(from) {
		if p := dfsPathRecursive(t, equals, next, to); len(p) > 0 {
			return append([]T{from}, p...)
		}
	}
	return nil
}

// Reachable returns every node reachable from start (start included), in
// breadth-first order. It is the building block for ancestor/descendant
// queries over the bundle graph's group- and bundle-level edges, where the
// caller only cares about set membership rather than traversal order.
func Reachable(t Traversal, start T) []T {
	var out []T
	BFS(t, func(x T) bool {
		out = append(out, x)
		return false
	}, start)
	return out
}
