// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view for the privgpt TUI.

The view is a single Bubble Tea model wiring together:

  - the transcript viewport, rendered through glamour for assistant
    markdown
  - the message input (a textarea with slash commands and @[name](id)
    session mentions)
  - the session sidebar backed by the registry
  - the status bar showing reachability, model selection, and the last
    exchange's latency

Streaming responses are written into the shared conversation by a
background goroutine; the view polls it at a capped frame rate via
StreamTickMsg instead of re-rendering per token. Reachability ticks
come from the netmon package and can force the model selection onto a
local model when the backend goes away.

# Slash Commands

	/new             start a draft chat
	/rename <name>   rename the active session
	/delete          delete the active session
	/clear           clear the active session's messages
	/export          write the transcript to a text file
	/attach <path>   attach a file to the next message
*/
package chat
