// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package fingerprint computes the stable identity assigned to bundles that
// have no single entry asset to derive one from (§9's hash Open Question).
package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SharedBundleKey returns a stable fingerprint for a shared bundle extracted
// from the source bundles named by sourceBundleIDs. The result does not
// depend on the input order, so the same set of source bundles is always
// assigned the same key regardless of the order they were collected in.
//
// Two xxhash passes (over the joined id list, and over the joined id list
// with a distinguishing suffix) are concatenated into a 128-bit hex string
// instead of a single 64-bit hash, which keeps a birthday-bound collision
// at 64 bits out of the picture; xxhash was already a direct dependency.
func SharedBundleKey(sourceBundleIDs []string) string {
	sorted := make([]string, len(sourceBundleIDs))
	copy(sorted, sourceBundleIDs)
	sort.Strings(sorted)
	joined := strings.Join(sorted, "\x00")

	h1 := xxhash.Sum64String(joined)
	h2 := xxhash.Sum64String(joined + "\x00fingerprint-v1")

	return fmt.Sprintf("%016x%016x", h1, h2)
}
