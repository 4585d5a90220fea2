// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd implements the bundler command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/assetgraph/bundler/cmd/internal/env"
)

// RootCommand is the base CLI command every subcommand registers itself
// against from its own init().
var RootCommand = &cobra.Command{
	Use:   "bundler",
	Short: "Asset graph bundler",
	Long:  "Compile a resolved asset graph into a bundle graph.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return env.CmdFlags.CheckEnvironmentVariables(cmd)
	},
}
