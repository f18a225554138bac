// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/services/n8n"
)

type instanceHealth struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCommand probes every registered instance from the CLI
func HealthCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "health",
		Short: "check connectivity of all registered instances",
		Example: `  flowdeck run health
  flowdeck run health --json`,
	}

	var outputJSON bool
	command.Flags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := database.InitDBWithConfig(database.NewConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()

		instances, err := db.ListInstances(ctx)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		prober := n8n.NewClient()

		results := make([]instanceHealth, 0, len(instances))
		healthy := true
		for i := range instances {
			result := prober.TestConnection(ctx, &instances[i])
			if result.Status != "success" {
				healthy = false
			}
			results = append(results, instanceHealth{
				ID:      instances[i].ID,
				Name:    instances[i].Name,
				Status:  result.Status,
				Message: result.Message,
			})
		}

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				fmt.Printf("  %-24s %-8s %s\n", r.Name, r.Status, r.Message)
			}
		}

		if !healthy {
			return fmt.Errorf("one or more instances are unreachable")
		}
		return nil
	}

	return command
}
