// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to plain text files.
//
// The transcript layout is fixed: a "CHATBOT CONVERSATION" header,
// session metadata, and one "[time] Who: content" line per message.
// Other clients of the same backend produce the identical format, so
// the wording is not adjustable.
//
// # Usage
//
//	path, err := export.ExportToFile(session, conv.Snapshot(), &export.Options{
//	    OutputDir: cfg.Export.Dir,
//	})
package export
