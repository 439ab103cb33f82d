// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the backend advertises",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		catalog, err := app.api.Models(context.Background())
		if err != nil {
			return fmt.Errorf("fetch models: %w", err)
		}
		if catalog.IsEmpty() {
			fmt.Println("The backend advertises no models.")
			return nil
		}

		if len(catalog.Local) > 0 {
			fmt.Println("Local models:")
			for _, name := range catalog.Local {
				fmt.Printf("  %s\n", name)
			}
		}
		if len(catalog.Cloud) > 0 {
			fmt.Println("Cloud models:")
			for _, name := range catalog.Cloud {
				fmt.Printf("  %s\n", name)
			}
		}
		return nil
	},
}
