// Copyright 2018 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/assetgraph/bundler/bundle"
	"github.com/assetgraph/bundler/compile"
	"github.com/assetgraph/bundler/config"
	"github.com/assetgraph/bundler/internal/fixture"
	intlogging "github.com/assetgraph/bundler/internal/logging"
	"github.com/assetgraph/bundler/logging"
)

type buildParams struct {
	maxParallelRequests int
	minBundleSize       uint64
	minBundles          int
	logLevel            string
	logFormat           string
	outputFormat        string
	configFile          string

	// explicitFlags holds the names of flags the user set on the command
	// line. doBuild consults it so an explicit flag always wins over the
	// corresponding value in --config, no matter which is evaluated first.
	explicitFlags map[string]bool
}

func newBuildParams() buildParams {
	def := config.Default()
	return buildParams{
		maxParallelRequests: def.MaxParallelRequests,
		minBundleSize:       def.MinBundleSize,
		minBundles:          def.MinBundles,
		logLevel:            def.LogLevel,
		logFormat:           def.LogFormat,
		outputFormat:        "table",
	}
}

func init() {
	params := newBuildParams()

	buildCommand := &cobra.Command{
		Use:   "build <graph.json>",
		Short: "Compile an asset graph into a bundle graph",
		Long: `Compile a resolved asset graph into a bundle graph.

The 'build' command reads a JSON description of a pre-resolved asset graph
(see internal/fixture for the schema) and runs the three bundling passes
over it: splitting assets into bundles at entry points, async imports and
isolated/inline boundaries, optimizing the result by hoisting, deduplicating
and extracting shared bundles, and finally marking which assets need to be
emitted as wrapped modules.

	$ bundler build graph.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params
			p.explicitFlags = map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				p.explicitFlags[f.Name] = true
			})
			return doBuild(cmd.OutOrStdout(), p, args[0])
		},
	}

	buildCommand.Flags().IntVar(&params.maxParallelRequests, "max-parallel-requests", params.maxParallelRequests, "maximum bundles a single bundle group may hold")
	buildCommand.Flags().Uint64Var(&params.minBundleSize, "min-bundle-size", params.minBundleSize, "minimum total size (bytes) for a shared bundle to be extracted")
	buildCommand.Flags().IntVar(&params.minBundles, "min-bundles", params.minBundles, "an asset is extracted into a shared bundle only when more than this many bundles contain it")
	buildCommand.Flags().StringVar(&params.logLevel, "log-level", params.logLevel, "set the log level: error, warn, info, debug")
	buildCommand.Flags().StringVar(&params.logFormat, "log-format", params.logFormat, "set the log format: json, json-pretty, text")
	buildCommand.Flags().StringVarP(&params.outputFormat, "output", "o", params.outputFormat, "set the output format: table, json")
	buildCommand.Flags().StringVar(&params.configFile, "config", "", "path to a bundler.yaml config file; flags take precedence over its values")

	RootCommand.AddCommand(buildCommand)
}

func doBuild(w io.Writer, params buildParams, path string) error {
	if params.configFile != "" {
		cfg, err := config.Load(params.configFile)
		if err != nil {
			return err
		}
		if !params.explicitFlags["max-parallel-requests"] {
			params.maxParallelRequests = cfg.MaxParallelRequests
		}
		if !params.explicitFlags["min-bundle-size"] {
			params.minBundleSize = cfg.MinBundleSize
		}
		if !params.explicitFlags["min-bundles"] {
			params.minBundles = cfg.MinBundles
		}
		if !params.explicitFlags["log-level"] {
			params.logLevel = cfg.LogLevel
		}
		if !params.explicitFlags["log-format"] {
			params.logFormat = cfg.LogFormat
		}
	}

	ag, err := fixture.LoadFile(path)
	if err != nil {
		return err
	}

	generatedID, err := uuid.NewRandomFromReader(rand.Reader)
	if err != nil {
		return fmt.Errorf("build: generating build id: %w", err)
	}
	buildID := generatedID.String()

	level, err := intlogging.GetLevel(params.logLevel)
	if err != nil {
		return err
	}

	logger := logging.New().WithFields(logging.BuildContext{BuildID: buildID}.Fields())
	logger.SetLevel(level)
	logger.SetFormatter(intlogging.GetFormatter(params.logFormat, ""))

	ctx := logging.WithBuildID(context.Background(), buildID)

	bg := bundle.NewBundleGraph(ag)
	compiler := compile.New().
		WithMaxParallelRequests(params.maxParallelRequests).
		WithMinBundleSize(params.minBundleSize).
		WithMinBundles(params.minBundles).
		WithLogger(logger)

	if err := compiler.Run(ctx, ag, bg); err != nil {
		return err
	}

	if params.outputFormat == "json" {
		return renderJSON(w, bg)
	}
	return renderTable(w, bg)
}

func bundleSize(bg *bundle.BundleGraph, id bundle.BundleID) uint64 {
	var size uint64
	bg.TraverseContents(id, &bundle.ContentsVisitor{
		Enter: func(a bundle.AssetID, _ *bundle.VisitControl) {
			size += bg.GetTotalSize(a)
		},
	})
	return size
}

func renderTable(w io.Writer, bg *bundle.BundleGraph) error {
	var rows [][]string
	for _, id := range bg.AllBundles() {
		b := bg.Bundle(id)
		rows = append(rows, []string{
			strconv.Itoa(int(id)),
			b.Type,
			strconv.FormatBool(b.IsEntry),
			strconv.FormatBool(b.IsInline),
			strconv.FormatUint(bundleSize(bg, id), 10),
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"bundle", "type", "entry", "inline", "size"})
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(w, "%d bundles, %d bundle groups\n", len(bg.AllBundles()), len(bg.AllBundleGroups()))
	return nil
}

type bundleReport struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	IsEntry  bool   `json:"isEntry"`
	IsInline bool   `json:"isInline"`
	Size     uint64 `json:"size"`
}

func renderJSON(w io.Writer, bg *bundle.BundleGraph) error {
	report := struct {
		Bundles      []bundleReport `json:"bundles"`
		BundleGroups int            `json:"bundleGroups"`
	}{
		BundleGroups: len(bg.AllBundleGroups()),
	}

	for _, id := range bg.AllBundles() {
		b := bg.Bundle(id)
		report.Bundles = append(report.Bundles, bundleReport{
			ID:       int(id),
			Type:     b.Type,
			IsEntry:  b.IsEntry,
			IsInline: b.IsInline,
			Size:     bundleSize(bg, id),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
