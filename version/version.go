// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package version records build-time identifying information. Version and
// Vcs are overridden at build time via -ldflags; Timestamp and Hostname are
// populated the same way by the release tooling and are empty in a plain
// `go build`.
package version

import "runtime"

// Version is the released version string, e.g. "1.4.0".
var Version = "0.0.0-dev"

// Vcs is the source revision the binary was built from.
var Vcs = ""

// Timestamp is the build time, RFC3339.
var Timestamp = ""

// Hostname is the machine the release was built on.
var Hostname = ""

// GoVersion is the toolchain used to build the binary.
var GoVersion = runtime.Version()
