// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages, sessions,
// and model selection.
//
// This package defines the core domain types used throughout the application
// for representing the active transcript, session list entries, file
// attachments, and the backend's model catalog.
//
// # Key Types
//
//   - Conversation: Mutex-guarded message log for the active session
//   - Message: Single message with role, content, timestamp, and attachment
//   - ChatSession: Sidebar entry for one backend session or the local draft
//   - Catalog / Selection: Advertised models and the current pick
//
// # Usage
//
// Create a transcript and stream into it:
//
//	conv := model.NewConversationWithWelcome()
//	msg := conv.AppendAssistantMessage()
//	conv.SetContent(msg.ID, "partial answer")
//
// The draft session always has ID model.DraftSessionID ("1") and is created
// fresh via model.NewDraftSession(); it never reaches the backend.
package model
