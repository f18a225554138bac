// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VersionCommand prints build metadata
func VersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flowdeck %s", buildVersion)
			if buildCommit != "" {
				fmt.Printf(" (%s)", buildCommit)
			}
			if buildDate != "" {
				fmt.Printf(" built %s", buildDate)
			}
			fmt.Println()
		},
	}
}
