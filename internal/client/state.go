// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

// =============================================================================
// EXCHANGE STATE
// =============================================================================

// State is the lifecycle phase of one streamed exchange. Transitions run
// strictly forward: Idle, Sending, Streaming, then exactly one of
// Completed, Errored, or Aborted. Terminal states absorb all later events.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateErrored
	StateAborted
)

// String returns the state name for logs and tests.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the exchange has settled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateAborted
}
