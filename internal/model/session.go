// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// CHAT SESSION
// =============================================================================

// DraftSessionID is the fixed ID of the local draft session. The draft is a
// purely local placeholder; it is never sent to the backend as a real
// session, and the server replaces it with a generated ID on the first
// completed exchange.
const DraftSessionID = "1"

// DraftSessionName is the display name of a fresh draft session.
const DraftSessionName = "How can I help you?"

// ChatSession is a sidebar entry for one conversation held by the backend,
// or for the local draft.
type ChatSession struct {
	ID          string
	Name        string
	LastMessage string
	CreatedAt   time.Time
}

// NewDraftSession creates a fresh draft session entry. A new value is
// constructed on every call so that renaming or otherwise mutating one
// transcript's draft can never leak into another.
func NewDraftSession() *ChatSession {
	return &ChatSession{
		ID:        DraftSessionID,
		Name:      DraftSessionName,
		CreatedAt: time.Now(),
	}
}

// IsDraft reports whether this entry is the local draft session.
func (s *ChatSession) IsDraft() bool {
	return s.ID == DraftSessionID
}
