// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the wire client for the PrivGPT backend.
//
// It covers the REST surface (models, history, rename, delete, clear, the
// buffered chat endpoint) and the streaming chat endpoint, which answers
// with newline-delimited "data: {json}" frames over text/event-stream.
//
// The package is transport only: it moves requests and frames, and leaves
// conversation state, session reconciliation, and abort semantics to
// internal/client and internal/registry. Remote session documents are
// returned as-is (Mongo's "_id"/"session_name" field names); the registry
// normalizes them at its boundary.
package api
