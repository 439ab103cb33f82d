// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privgpt-studio/privgpt-tui/internal/config"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("privgpt %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Println()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Println("Configuration:")
		fmt.Printf("  Server: %s\n", cfg.Server.BaseURL)
		fmt.Printf("  Default model: %s (%s)\n", cfg.Model.DefaultName, cfg.Model.DefaultType)
		fmt.Printf("  Theme: %s\n", cfg.UI.Theme)
		dbPath, err := cfg.DBPath()
		if err != nil {
			return err
		}
		fmt.Printf("  Database: %s\n", dbPath)
		return nil
	},
}
