// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bundle

// Meta is an open string-keyed bag carried on Assets and Dependencies. The
// bundling core only ever reads and writes the "shouldWrap" entry itself;
// everything else passes through untouched for downstream consumers.
type Meta map[string]any

// ShouldWrap reports the "shouldWrap" entry, defaulting to false when absent
// or not a bool.
func (m Meta) ShouldWrap() bool {
	if m == nil {
		return false
	}
	v, _ := m["shouldWrap"].(bool)
	return v
}

// SetShouldWrap sets the "shouldWrap" entry. Callers must not call this on a
// nil Meta; use NewMeta or ensure the Asset was constructed with a non-nil
// Meta.
func (m Meta) SetShouldWrap(v bool) {
	m["shouldWrap"] = v
}

// NewMeta returns an empty, non-nil Meta.
func NewMeta() Meta {
	return Meta{}
}

// Env describes the runtime environment an asset or bundle targets.
type Env struct {
	// Context names the execution context, e.g. "browser", "node",
	// "web-worker". Purely descriptive; the core never branches on it
	// except through Isolated.
	Context string
	// Isolated marks an environment that cannot share its runtime scope
	// with ancestor bundles (e.g. a web worker or iframe).
	Isolated bool
}

// IsIsolated reports whether the environment cannot share scope with
// ancestor bundles.
func (e Env) IsIsolated() bool {
	return e.Isolated
}

// Target describes where and for what environment a bundle's output is
// destined. The bundling core treats it as an opaque, copyable value that
// must be present whenever a bundle group is opened.
type Target struct {
	Env       Env
	Dist      string
	PublicURL string
}

// Asset is an atomic transformable unit produced upstream by resolution and
// transformation; the bundling core treats it as read-only except for Meta.
type Asset struct {
	ID         string
	Type       string
	IsIsolated bool
	IsInline   bool
	Env        Env
	Meta       Meta
	Size       uint64
}
