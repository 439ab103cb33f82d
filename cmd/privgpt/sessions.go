// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/privgpt-studio/privgpt-tui/internal/util"
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsRenameCmd, sessionsDeleteCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chat sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		ids, err := app.store.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		docs, err := app.api.History(ctx, ids)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tCREATED")
		for _, doc := range docs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				doc.ID,
				util.TruncateWidth(doc.Name, 40),
				len(doc.Messages),
				doc.CreatedAt,
			)
		}
		return w.Flush()
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <new name>",
	Short: "Rename a stored chat session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.api.RenameSession(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("rename session: %w", err)
		}
		fmt.Printf("Renamed %s to %q.\n", args[0], args[1])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		if err := app.api.DeleteSession(ctx, args[0]); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if err := app.store.Remove(ctx, args[0]); err != nil {
			return fmt.Errorf("drop stored session id: %w", err)
		}
		fmt.Printf("Deleted %s.\n", args[0])
		return nil
	},
}
