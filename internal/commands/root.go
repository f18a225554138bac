// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildDate    = ""
)

// SetVersionInfo records the build metadata shown by the version command
func SetVersionInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	buildCommit = commit
	buildDate = date
}

// Execute runs the maintenance CLI with the given arguments
func Execute(args []string) error {
	root := &cobra.Command{
		Use:           "flowdeck run",
		Short:         "flowdeck maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		HealthCommand(),
		VersionCommand(),
	)

	root.SetArgs(args)
	return root.Execute()
}
