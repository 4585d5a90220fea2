// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package fixture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assetgraph/bundler/bundle"
)

const sampleGraph = `{
  "assets": [
    {"id": "a", "type": "js"},
    {"id": "shared", "type": "js", "size": 1234}
  ],
  "dependencies": [
    {"id": "entry-a", "isEntry": true, "target": {"env": {"context": "browser"}, "dist": "dist", "publicUrl": "/"}, "resolves": ["a"]},
    {"id": "a->shared", "source": "a", "resolves": ["shared"]}
  ],
  "entries": ["entry-a"]
}`

func TestLoadBuildsAssetGraph(t *testing.T) {
	ag, err := Load(strings.NewReader(sampleGraph))
	require.NoError(t, err)

	require.Equal(t, 2, ag.AssetCount())
	require.Equal(t, 2, ag.DependencyCount())
	require.Len(t, ag.EntryDependencies(), 1)

	a, ok := ag.AssetByStringID("a")
	require.True(t, ok)
	shared, ok := ag.AssetByStringID("shared")
	require.True(t, ok)

	dep, ok := ag.DependencyByStringID("a->shared")
	require.True(t, ok)
	require.Equal(t, a, ag.Dependency(dep).Source)
	require.Equal(t, []bundle.AssetID{shared}, ag.Resolve(dep))

	entryDep, ok := ag.DependencyByStringID("entry-a")
	require.True(t, ok)
	require.True(t, ag.Dependency(entryDep).IsEntry)
	require.NotNil(t, ag.Dependency(entryDep).Target)
	require.Equal(t, uint64(1234), ag.Asset(shared).Size)
}

func TestLoadRejectsUnknownSourceAsset(t *testing.T) {
	doc := `{
  "assets": [{"id": "a", "type": "js"}],
  "dependencies": [{"id": "bad", "source": "missing"}],
  "entries": []
}`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoadRejectsUnknownResolvedAsset(t *testing.T) {
	doc := `{
  "assets": [{"id": "a", "type": "js"}],
  "dependencies": [{"id": "entry-a", "isEntry": true, "resolves": ["missing"]}],
  "entries": ["entry-a"]
}`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoadRejectsUnknownEntry(t *testing.T) {
	doc := `{
  "assets": [{"id": "a", "type": "js"}],
  "dependencies": [{"id": "entry-a", "isEntry": true, "resolves": ["a"]}],
  "entries": ["not-declared"]
}`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoadFileMissingPath(t *testing.T) {
	_, err := LoadFile("/does/not/exist.json")
	require.Error(t, err)
}
