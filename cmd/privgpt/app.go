// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/client"
	"github.com/privgpt-studio/privgpt-tui/internal/config"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/netmon"
	"github.com/privgpt-studio/privgpt-tui/internal/registry"
	"github.com/privgpt-studio/privgpt-tui/internal/storage"
	"github.com/privgpt-studio/privgpt-tui/internal/voice"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app bundles the services shared by the TUI and the subcommands.
type app struct {
	cfg         *config.Config
	api         *api.Client
	store       *storage.SessionStore
	registry    *registry.Registry
	conv        *model.Conversation
	streamer    *client.StreamClient
	buffered    *client.BufferedClient
	monitor     *netmon.Monitor
	transcriber voice.Transcriber
}

// buildApp loads configuration and wires the service graph.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if serverFlag != "" {
		cfg.Server.BaseURL = serverFlag
	}
	config.SetGlobal(cfg)

	apiClient := api.NewClient(cfg.Server.BaseURL)

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	reg := registry.New(apiClient, store)
	conv := model.NewConversationWithWelcome()

	return &app{
		cfg:         cfg,
		api:         apiClient,
		store:       store,
		registry:    reg,
		conv:        conv,
		streamer:    client.NewStreamClient(apiClient, conv, reg),
		buffered:    client.NewBufferedClient(apiClient, conv, reg),
		monitor:     netmon.New(netmon.BackendProbe(apiClient)),
		transcriber: voice.Unavailable{},
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}
