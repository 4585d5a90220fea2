// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package fixture loads a pre-resolved asset graph from JSON. It exists so
// the CLI and tests have a host to hand the bundling core a graph without
// this module taking on asset resolution, parsing or transformation, all of
// which are out of scope (§1 Non-goals): the JSON here only ever describes a
// graph that has already been resolved elsewhere, never source text.
package fixture

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/assetgraph/bundler/bundle"
)

type assetDoc struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	IsIsolated bool   `json:"isIsolated"`
	IsInline   bool   `json:"isInline"`
	Env        envDoc `json:"env"`
	Size       uint64 `json:"size"`
}

type envDoc struct {
	Context  string `json:"context"`
	Isolated bool   `json:"isolated"`
}

type targetDoc struct {
	Env       envDoc `json:"env"`
	Dist      string `json:"dist"`
	PublicURL string `json:"publicUrl"`
}

type dependencyDoc struct {
	ID       string     `json:"id"`
	Source   string     `json:"source"`
	IsEntry  bool       `json:"isEntry"`
	IsAsync  bool       `json:"isAsync"`
	Target   *targetDoc `json:"target,omitempty"`
	Resolves []string   `json:"resolves"`
}

type graphDoc struct {
	Assets       []assetDoc      `json:"assets"`
	Dependencies []dependencyDoc `json:"dependencies"`
	Entries      []string        `json:"entries"`
}

// LoadFile reads and builds an AssetGraph from a JSON fixture file.
func LoadFile(path string) (*bundle.AssetGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads and builds an AssetGraph from JSON on r.
func Load(r io.Reader) (*bundle.AssetGraph, error) {
	var doc graphDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	return build(doc)
}

func build(doc graphDoc) (*bundle.AssetGraph, error) {
	g := bundle.NewAssetGraph()

	for _, a := range doc.Assets {
		g.AddAsset(&bundle.Asset{
			ID:         a.ID,
			Type:       a.Type,
			IsIsolated: a.IsIsolated,
			IsInline:   a.IsInline,
			Env:        bundle.Env{Context: a.Env.Context, Isolated: a.Env.Isolated},
			Size:       a.Size,
		})
	}

	for _, d := range doc.Dependencies {
		var source bundle.AssetID
		if d.Source != "" {
			id, ok := g.AssetByStringID(d.Source)
			if !ok {
				return nil, fmt.Errorf("fixture: dependency %q references unknown source asset %q", d.ID, d.Source)
			}
			source = id
		}

		var target *bundle.Target
		if d.Target != nil {
			target = &bundle.Target{
				Env:       bundle.Env{Context: d.Target.Env.Context, Isolated: d.Target.Env.Isolated},
				Dist:      d.Target.Dist,
				PublicURL: d.Target.PublicURL,
			}
		}

		depID := g.AddDependency(&bundle.Dependency{
			ID:      d.ID,
			Source:  source,
			IsEntry: d.IsEntry,
			IsAsync: d.IsAsync,
			Target:  target,
		})

		if d.Source != "" {
			g.AddEdge(source, depID)
		}

		for _, resolvedID := range d.Resolves {
			assetID, ok := g.AssetByStringID(resolvedID)
			if !ok {
				return nil, fmt.Errorf("fixture: dependency %q resolves to unknown asset %q", d.ID, resolvedID)
			}
			g.AddResolution(depID, assetID)
		}
	}

	for _, entryID := range doc.Entries {
		depID, ok := g.DependencyByStringID(entryID)
		if !ok {
			return nil, fmt.Errorf("fixture: entry references unknown dependency %q", entryID)
		}
		g.AddEntryDependency(depID)
	}

	return g, nil
}
