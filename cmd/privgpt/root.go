// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/privgpt-studio/privgpt-tui/internal/config"
	"github.com/privgpt-studio/privgpt-tui/internal/ui/chat"
	"github.com/privgpt-studio/privgpt-tui/internal/ui/styles"
)

// serverFlag overrides the configured backend address for one run.
var serverFlag string

var rootCmd = &cobra.Command{
	Use:   "privgpt",
	Short: "Terminal chat client for a PrivGPT backend",
	Long: `privgpt is a terminal client for a self-hosted PrivGPT backend.

Running it with no arguments opens the chat interface. Subcommands
cover session management, model listing, and transcript export
without entering the TUI.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "backend base URL (overrides config)")
	return rootCmd.Execute()
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The UI owns stdout, so background failures go to a log file when
	// debugging is on.
	if os.Getenv("PRIVGPT_DEBUG") != "" {
		if f, err := tea.LogToFile("privgpt-debug.log", "privgpt"); err == nil {
			defer f.Close()
		}
	}

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	// Pick up config edits made while the TUI is running. A failed
	// watch is not fatal; the session just uses the startup config.
	if cfgPath, err := config.Path(); err == nil {
		watcher, err := config.NewWatcher(cfgPath, func(c *config.Config) {
			config.SetGlobal(c)
		})
		if err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	theme := styles.NewTheme()
	view := chat.New(theme, chat.Deps{
		Config:       app.cfg,
		API:          app.api,
		Conversation: app.conv,
		Registry:     app.registry,
		Streamer:     app.streamer,
		Buffered:     app.buffered,
		Monitor:      app.monitor,
		Store:        app.store,
		Transcriber:  app.transcriber,
	})

	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "The interface crashed:", err)
		return err
	}
	return nil
}
