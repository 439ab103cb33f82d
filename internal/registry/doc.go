// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks the session list shown in the sidebar.
//
// It owns the draft lifecycle: at most one draft session (fixed ID "1")
// exists at a time, it is always listed first, and it never reaches the
// backend. When a streamed exchange that started under the draft completes,
// Reconcile swaps the draft for the server-assigned session ID and persists
// that ID locally.
//
// Rename and delete are optimistic against the backend: the remote call
// goes first and local state only changes after it succeeds. Both are
// defined no-ops for the draft, reported as ErrDraftSession.
//
// Remote session documents enter through this package's normalization
// helpers, which map the backend's "_id"/"session_name"/"bot" vocabulary
// onto the domain types exactly once.
package registry
