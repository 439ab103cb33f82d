// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privgpt-studio/privgpt-tui/internal/export"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/registry"
)

var exportDirFlag string

func init() {
	exportCmd.Flags().StringVarP(&exportDirFlag, "output", "o", "", "directory to write the transcript to")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write a session transcript to a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		id := args[0]

		docs, err := app.api.History(ctx, []string{id})
		if err != nil {
			return fmt.Errorf("fetch session: %w", err)
		}
		session := model.ChatSession{ID: id, Name: "unnamed"}
		for _, doc := range docs {
			if doc.ID == id {
				session = *registry.SessionFromDoc(doc)
				break
			}
		}

		msgDocs, err := app.api.SessionMessages(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		dir := exportDirFlag
		if dir == "" {
			dir = app.cfg.Export.Dir
		}
		path, err := export.ExportToFile(session, registry.MessagesFromDocs(msgDocs), &export.Options{OutputDir: dir})
		if err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}
