// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

// Dependency is an edge from a source asset to one or more resolved assets.
type Dependency struct {
	ID string
	// Source is the asset that declared the dependency. Zero for entry
	// dependencies declared at the graph root.
	Source AssetID
	// IsEntry marks a dependency as a root of its own bundle group, as
	// opposed to an import reached while walking another bundle's assets.
	IsEntry bool
	// IsAsync marks a dynamic import: a separate bundle group at runtime
	// unless internalized by the optimizer.
	IsAsync bool
	// Target describes the destination environment/output location for the
	// bundle group this dependency may open. Nil means "inherit from the
	// enclosing context".
	Target *Target
	Meta   Meta
}
