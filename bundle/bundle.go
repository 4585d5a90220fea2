// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

// Bundle is an ordered collection of assets of a single Type, rooted at one
// or more main-entry assets.
type Bundle struct {
	ID           BundleID
	Type         string
	Env          Env
	Target       Target
	IsEntry      bool
	IsInline     bool
	IsSplittable bool
	// UniqueKey is set on bundles created without a single entry asset
	// (e.g. shared bundles extracted by the optimizer); it is the stable
	// fingerprint used in place of an entry-derived identity.
	UniqueKey string
}

// BundleGroup is a set of bundles the runtime loads together to satisfy one
// load point (an entry, an async import, or a type split).
type BundleGroup struct {
	ID GroupID
	// OpenedBy is the dependency that caused this group to be created, and
	// HasOpener reports whether OpenedBy is meaningful (the zero
	// DependencyID is valid input data, so it cannot serve as its own
	// sentinel).
	OpenedBy  DependencyID
	HasOpener bool
	Target    Target
}
