// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/client"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StreamTickMsg drives transcript refresh while a response streams in.
// The streaming goroutine writes into the conversation; the view only
// re-reads it on these ticks, capping the render rate.
type StreamTickMsg struct {
	Time time.Time
}

// modelsLoadedMsg carries the model catalog fetched at startup.
type modelsLoadedMsg struct {
	catalog model.Catalog
	err     error
}

// historyLoadedMsg carries the remote session list.
type historyLoadedMsg struct {
	docs []api.SessionDoc
	err  error
}

// sessionOpenedMsg carries a session's stored transcript.
type sessionOpenedMsg struct {
	id       string
	messages []*model.Message
	err      error
}

// bufferedDoneMsg reports a settled buffered (attachment) exchange.
type bufferedDoneMsg struct {
	res *client.Result
	err error
}

// actionDoneMsg reports the outcome of a session action (rename,
// delete, clear, export). nextActive is set by delete.
type actionDoneMsg struct {
	notice         string
	nextActive     string
	refreshHistory bool
	err            error
}
