// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client drives chat exchanges against the backend and applies
// their effects to the transcript.
//
// StreamClient handles the streaming path: it appends the user and
// assistant messages, pumps stream events into the assistant message as
// they arrive, and settles the exchange into exactly one terminal state
// (completed, errored, or aborted). Abort is cooperative and always wins a
// race with late frames; the fixed cancellation marker is appended to
// whatever content had accumulated.
//
// BufferedClient handles the single request/response path used for
// attachments: one appended assistant message on success, nothing but a
// cleared typing indicator on failure.
//
// Both clients reconcile the draft session with the server-assigned ID
// when an exchange that started under the draft completes.
package client
