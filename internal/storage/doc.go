// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the list of known session IDs between runs.
//
// Transcripts live on the backend; the only local state worth keeping is
// which sessions belong to this user. The list is held in a small SQLite
// database and read once at startup to drive the initial history fetch.
//
// # Usage
//
//	store, err := storage.Open(path)
//	ids, err := store.List(ctx)
//	err = store.Add(ctx, newID)
//
// # Storage Location
//
// The database lives at ~/.privgpt/sessions.db by default.
package storage
